package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 认证与权限 100xx
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 订单与库存 200xx
	ErrOrderNotFound         = 20001
	ErrInsufficientStock     = 20002
	ErrProductUnavailable    = 20003
	ErrOrderAmountOutOfRange = 20004
	ErrInvalidTransition     = 20005

	// 钱包与支付核验 300xx
	ErrInsufficientBalance = 30001
	ErrDuplicateReference  = 30002
	ErrPaymentNotVerified  = 30003

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
	ErrNotFound        = 50004
)
