package model

// 违规原因
const (
	ReasonNotFound          = "not_found"
	ReasonUnpublished       = "unpublished"
	ReasonInsufficientStock = "insufficient_stock"
)

// StockViolation 单个商品的库存/状态问题，下单时一次性返回全部
type StockViolation struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}
