package handler

import (
	"net/http"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/service"
	"storefront/internal/pkg/middleware"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(service service.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	Items              []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Currency           string             `json:"currency" binding:"required"`
	ExchangeRate       decimal.Decimal    `json:"exchangeRate"`
	Total              decimal.Decimal    `json:"total" binding:"required"`
	Tax                decimal.Decimal    `json:"tax"`
	Shipping           decimal.Decimal    `json:"shipping"`
	DeliveryMethod     string             `json:"deliveryMethod" binding:"required"`
	PaymentMethod      string             `json:"paymentMethod" binding:"required"`
	ShippingAddress    *model.Address     `json:"shippingAddress"`
	AppliedDiscountIDs []string           `json:"appliedDiscountIds"`
	Notes              string             `json:"notes" binding:"max=500"`
}

type UpdateOrderRequest struct {
	Status          *string `json:"status"`
	PaymentStatus   *string `json:"paymentStatus"`
	ShippingCarrier *string `json:"shippingCarrier" binding:"omitempty,max=64"`
	TrackingNumber  *string `json:"trackingNumber" binding:"omitempty,max=64"`
	Notes           *string `json:"notes" binding:"omitempty,max=500"`
}

// CreateOrder 创建订单
// @Summary 创建订单
// @Tags orders
// @Security Bearer
// @Param request body CreateOrderRequest true "订单信息"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	in := service.CreateOrderInput{
		UserID:          userID,
		Items:           make([]service.ItemInput, 0, len(req.Items)),
		Currency:        model.Currency(req.Currency),
		ExchangeRate:    req.ExchangeRate,
		TotalUSD:        req.Total,
		TaxUSD:          req.Tax,
		ShippingUSD:     req.Shipping,
		DeliveryMethod:  model.DeliveryMethod(req.DeliveryMethod),
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
		ShippingAddress: req.ShippingAddress,
		DiscountIDs:     req.AppliedDiscountIDs,
		Notes:           req.Notes,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, service.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.service.CreateOrder(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, order)
}

// UpdateOrder 修改订单状态
// @Summary 修改订单状态
// @Tags orders
// @Security Bearer
// @Param id query string true "订单ID"
// @Param request body UpdateOrderRequest true "修改内容"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /orders [patch]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "id is required")
		return
	}

	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	patch := service.StatusPatch{
		ShippingCarrier: req.ShippingCarrier,
		TrackingNumber:  req.TrackingNumber,
		Notes:           req.Notes,
	}
	if req.Status != nil {
		s := model.Status(*req.Status)
		patch.Status = &s
	}
	if req.PaymentStatus != nil {
		p := model.PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &p
	}

	actorID, _ := middleware.CurrentUserID(c)
	order, err := h.service.UpdateOrderStatus(c.Request.Context(), id, actorID, patch)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrders 查询订单，带 id 时返回单个订单
// @Summary 查询订单
// @Tags orders
// @Security Bearer
// @Param id query string false "订单ID"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response
// @Router /orders [get]
func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	if id := c.Query("id"); id != "" {
		isManager := middleware.HasPermission(c, middleware.PermOrdersManage)
		order, err := h.service.GetOrder(c.Request.Context(), id, userID, isManager)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.Success(c, order)
		return
	}

	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	result, err := h.service.ListOrders(c.Request.Context(), userID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
