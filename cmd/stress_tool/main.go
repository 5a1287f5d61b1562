package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"storefront/pkg/utils"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   30 * time.Second,
	}
}

type outcome int

const (
	outcomeVerified outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeError
)

// 模拟多个用户同时提交同一笔 Pago Móvil 参考号，预期最多只有一个核验成功
func main() {
	_ = godotenv.Load()

	var (
		baseURL   = flag.String("url", "http://localhost:8080", "server base url")
		users     = flag.Int("users", 200, "concurrent users")
		reference = flag.String("ref", "", "8-digit reference, random when empty")
		amount    = flag.String("amount", "150.00", "amount in Bs")
		phone     = flag.String("phone", "04141234567", "payer phone")
		cedula    = flag.String("cedula", "V12345678", "payer id")
		bank      = flag.String("bank", "0102", "origin bank code")
	)
	flag.Parse()

	v := viper.New()
	v.AutomaticEnv()
	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required to sign test tokens")
	}

	ref := *reference
	if ref == "" {
		ref = fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"telefonoPagador": *phone,
		"cedulaPagador":   *cedula,
		"bancoOrigen":     *bank,
		"referencia":      ref,
		"fechaPago":       time.Now().Format("2006-01-02"),
		"importe":         *amount,
		"contexto":        "GENERAL",
	})

	fmt.Printf("开始压测：%d 个用户同时提交参考号 %s...\n", *users, ref)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[outcome]int{}
	)
	start := time.Now()

	for i := 0; i < *users; i++ {
		token, _, err := utils.GenerateToken(secret, uuid.New().String(), utils.RoleUser, nil, time.Hour)
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			o := submit(*baseURL, token, payload)
			mu.Lock()
			counts[o]++
			mu.Unlock()
		}(token)
	}

	wg.Wait()
	duration := time.Since(start)

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d\n", *users)
	fmt.Printf("QPS: %.2f\n", float64(*users)/duration.Seconds())
	fmt.Printf("核验成功: %d (预期: 最多 1)\n", counts[outcomeVerified])
	fmt.Printf("重复参考号: %d\n", counts[outcomeDuplicate])
	fmt.Printf("银行未确认: %d\n", counts[outcomeRejected])
	fmt.Printf("请求失败: %d\n", counts[outcomeError])
	fmt.Println("--------------------------------------------------")

	if counts[outcomeVerified] > 1 {
		log.Fatal("同一参考号被核验了多次")
	}
}

func submit(baseURL, token string, payload []byte) outcome {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/pago-movil/verificar", bytes.NewReader(payload))
	if err != nil {
		return outcomeError
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return outcomeError
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeError
	}

	var result struct {
		Verified           bool `json:"verified"`
		DuplicateReference bool `json:"duplicateReference"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return outcomeError
	}

	switch {
	case result.DuplicateReference:
		return outcomeDuplicate
	case resp.StatusCode == http.StatusOK && result.Verified:
		return outcomeVerified
	case resp.StatusCode == http.StatusOK:
		return outcomeRejected
	default:
		return outcomeError
	}
}
