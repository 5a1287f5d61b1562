package handler

import (
	"net/http"

	"storefront/internal/domain/wallet/service"
	"storefront/internal/pkg/middleware"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	service service.LedgerService
}

func NewWalletHandler(service service.LedgerService) *WalletHandler {
	return &WalletHandler{service: service}
}

type CreateRechargeRequest struct {
	AmountUSD     decimal.Decimal `json:"amountUsd" binding:"required"`
	AmountBs      decimal.Decimal `json:"amountBs" binding:"required"`
	ExchangeRate  decimal.Decimal `json:"exchangeRate"`
	Reference     string          `json:"reference" binding:"max=64"`
	PaymentMethod string          `json:"paymentMethod" binding:"required,max=32"`
	PayerPhone    string          `json:"payerPhone"`
	BankCode      string          `json:"bankCode"`
}

type ApproveRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// GetBalance 查询钱包余额
// @Summary 查询钱包余额
// @Tags wallet
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /wallet/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	balance, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, balance)
}

// ListTransactions 查询钱包流水
// @Summary 查询钱包流水
// @Tags wallet
// @Security Bearer
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response
// @Router /wallet/transactions [get]
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ListTransactions(c.Request.Context(), userID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// CreateRecharge 提交充值申请
// @Summary 提交充值申请
// @Tags wallet
// @Security Bearer
// @Param request body CreateRechargeRequest true "充值信息"
// @Success 201 {object} response.Response
// @Router /wallet/recharges [post]
func (h *WalletHandler) CreateRecharge(c *gin.Context) {
	var req CreateRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	t, err := h.service.CreateRecharge(c.Request.Context(), service.RechargeInput{
		UserID:        userID,
		AmountUSD:     req.AmountUSD,
		AmountBs:      req.AmountBs,
		ExchangeRate:  req.ExchangeRate,
		Reference:     req.Reference,
		PaymentMethod: req.PaymentMethod,
		PayerPhone:    req.PayerPhone,
		BankCode:      req.BankCode,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, t)
}

// ApproveRecharge 客服人工审批充值
// @Summary 人工审批充值
// @Tags admin
// @Security Bearer
// @Param id path string true "交易ID"
// @Param request body ApproveRequest false "备注"
// @Success 200 {object} response.Response
// @Router /admin/wallet/transactions/{id}/approve [post]
func (h *WalletHandler) ApproveRecharge(c *gin.Context) {
	var req ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	reviewerID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ManualApprove(c.Request.Context(), service.ManualApproveInput{
		TransactionID: c.Param("id"),
		ReviewerID:    reviewerID,
		Note:          req.Note,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
