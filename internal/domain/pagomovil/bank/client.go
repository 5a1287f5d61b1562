package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/pkg/config"
	"storefront/pkg/apperr"
	"storefront/pkg/metrics"
	"storefront/pkg/pool"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnavailable 银行接口不可用：超时、熔断、非 2xx
var ErrUnavailable = apperr.External("bank verification service unavailable", nil)

// codeFound BDV 接口中表示找到匹配转账的响应码
const codeFound = "1000"

// Request 核验请求
type Request struct {
	PayerPhone  string
	PayerID     string
	BankCode    string
	Reference   string
	PaymentDate time.Time
	Amount      decimal.Decimal
}

// Result 核验结果；除以下字段外银行响应视为不透明
type Result struct {
	Verified bool
	Amount   decimal.Decimal
	Code     string
	Message  string
	Raw      json.RawMessage
}

// Verifier 银行转账核验
type Verifier interface {
	Verify(ctx context.Context, req Request) (*Result, error)
}

type movementRequest struct {
	PayerID     string `json:"cedulaPagador"`
	PayerPhone  string `json:"telefonoPagador"`
	BankCode    string `json:"bancoOrigen"`
	Reference   string `json:"referencia"`
	PaymentDate string `json:"fechaPago"`
	Amount      string `json:"importe"`
}

type movementResponse struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
	Data    *struct {
		Amount decimal.Decimal `json:"amount"`
	} `json:"data"`
}

// BDVClient BDV Pago Móvil 核验接口客户端
type BDVClient struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	breaker  *pool.CircuitBreaker
	inFlight *pool.SemaphorePool
	metrics  *metrics.MetricsCollector
	log      *zap.Logger
}

// NewBDVClient 创建客户端，请求超时由 http.Client 保证
func NewBDVClient(cfg config.BankConfig, m *metrics.MetricsCollector, log *zap.Logger) *BDVClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BDVClient{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		breaker:  pool.NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		inFlight: pool.NewSemaphorePool(cfg.MaxInFlight),
		metrics:  m,
		log:      log,
	}
}

func (c *BDVClient) Verify(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	var result *Result

	err := c.inFlight.Execute(ctx, func() error {
		return c.breaker.Call(func() error {
			var err error
			result, err = c.call(ctx, req)
			return err
		})
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, pool.ErrCircuitOpen) {
			outcome = "circuit_open"
		}
		c.log.Warn("bank verification failed",
			zap.String("reference", req.Reference),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		c.metrics.BankCall(outcome, time.Since(start))
		return nil, ErrUnavailable.Wrap(err)
	}
	c.metrics.BankCall(outcome, time.Since(start))
	return result, nil
}

func (c *BDVClient) call(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(movementRequest{
		PayerID:     req.PayerID,
		PayerPhone:  req.PayerPhone,
		BankCode:    req.BankCode,
		Reference:   req.Reference,
		PaymentDate: req.PaymentDate.Format("2006-01-02"),
		Amount:      req.Amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/getMovement", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bank request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read bank response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("bank returned %d", resp.StatusCode)
	}

	var parsed movementResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode bank response: %w", err)
	}

	result := &Result{
		Code:    parsed.Code.String(),
		Message: parsed.Message,
		Raw:     raw,
	}
	if result.Code == codeFound && parsed.Data != nil {
		result.Verified = true
		result.Amount = parsed.Data.Amount
	}
	return result, nil
}
