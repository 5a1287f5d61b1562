package reqctx

import "context"

// Meta 请求元数据，供审计日志还原事件来源
type Meta struct {
	RequestID string
	IP        string
	UserAgent string
	UserID    string
}

type metaKey struct{}

// With 将请求元数据写入 context
func With(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// From 读取请求元数据，不存在时返回零值
func From(ctx context.Context) Meta {
	if m, ok := ctx.Value(metaKey{}).(Meta); ok {
		return m
	}
	return Meta{}
}
