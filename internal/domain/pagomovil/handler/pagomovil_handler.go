package handler

import (
	"errors"
	"net/http"

	"storefront/internal/domain/pagomovil/model"
	"storefront/internal/domain/pagomovil/service"
	"storefront/internal/pkg/middleware"
	"storefront/pkg/apperr"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PagoMovilHandler struct {
	service service.VerificationService
}

func NewPagoMovilHandler(service service.VerificationService) *PagoMovilHandler {
	return &PagoMovilHandler{service: service}
}

type VerifyRequest struct {
	TelefonoPagador string          `json:"telefonoPagador" binding:"required"`
	BancoOrigen     string          `json:"bancoOrigen" binding:"required"`
	Referencia      string          `json:"referencia" binding:"required"`
	FechaPago       string          `json:"fechaPago" binding:"required"`
	Importe         decimal.Decimal `json:"importe"`
	CedulaPagador   string          `json:"cedulaPagador" binding:"required"`
	Contexto        string          `json:"contexto"`
	TransactionID   string          `json:"transactionId"`
	OrderID         string          `json:"orderId"`
}

type VerifyResponse struct {
	Success        bool             `json:"success"`
	Verified       bool             `json:"verified"`
	AutoApproved   *bool            `json:"autoApproved,omitempty"`
	Message        string           `json:"message"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	VerificationID string           `json:"verificationId,omitempty"`
}

// DuplicateResponse 不区分是哪一层拦截
type DuplicateResponse struct {
	Success            bool   `json:"success"`
	Error              string `json:"error"`
	DuplicateReference bool   `json:"duplicateReference"`
	RequiresContact    bool   `json:"requiresContact"`
}

// Verify 核验 Pago Móvil 转账
// @Summary 核验 Pago Móvil 转账
// @Tags pago-movil
// @Security Bearer
// @Param request body VerifyRequest true "转账信息"
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} DuplicateResponse
// @Failure 429 {object} response.ErrorBody
// @Router /pago-movil/verificar [post]
func (h *PagoMovilHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	ctxValue := model.Context(req.Contexto)
	if ctxValue == "" {
		ctxValue = model.ContextGeneral
	}

	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.Verify(c.Request.Context(), service.VerifyInput{
		UserID:        userID,
		PayerPhone:    req.TelefonoPagador,
		PayerID:       req.CedulaPagador,
		BankCode:      req.BancoOrigen,
		Reference:     req.Referencia,
		PaymentDate:   req.FechaPago,
		Amount:        req.Importe,
		Context:       ctxValue,
		TransactionID: req.TransactionID,
		OrderID:       req.OrderID,
	})
	if errors.Is(err, apperr.ErrDuplicateReference) {
		c.JSON(http.StatusBadRequest, DuplicateResponse{
			Success:            false,
			Error:              apperr.ErrDuplicateReference.Message,
			DuplicateReference: true,
			RequiresContact:    true,
		})
		return
	}
	if err != nil {
		response.FromError(c, err)
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Success:        true,
		Verified:       result.Verified,
		AutoApproved:   result.AutoApproved,
		Message:        result.Message,
		Amount:         result.Amount,
		VerificationID: result.VerificationID,
	})
}

// ListVerifications 查询自己的核验记录
// @Summary 查询核验记录
// @Tags pago-movil
// @Security Bearer
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response
// @Router /pago-movil/verificaciones [get]
func (h *PagoMovilHandler) ListVerifications(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ListMine(c.Request.Context(), userID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
