package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Provider 显式注入的配置提供者
// Current 返回当前快照；Refresh 立即重新加载；Invalidate 标记失效，下次 Current 时惰性重载
type Provider interface {
	Current() *Config
	Refresh() error
	Invalidate()
}

// ViperProvider 基于 viper 的配置提供者，ttl 到期后自动重载
type ViperProvider struct {
	v        *viper.Viper
	ttl      time.Duration
	now      func() time.Time
	onError  func(error)
	// reloadMu 串行化重载，viper 实例不支持并发读取
	reloadMu sync.Mutex
	mu       sync.RWMutex
	cfg      *Config
	loadedAt time.Time
	stale    bool
}

// NewViperProvider 使用已加载的配置初始化
func NewViperProvider(v *viper.Viper, initial *Config, ttl time.Duration, onError func(error)) *ViperProvider {
	if onError == nil {
		onError = func(error) {}
	}
	return &ViperProvider{
		v:        v,
		ttl:      ttl,
		now:      time.Now,
		onError:  onError,
		cfg:      initial,
		loadedAt: time.Now(),
	}
}

func (p *ViperProvider) Current() *Config {
	p.mu.RLock()
	cfg, stale := p.cfg, p.isStale()
	p.mu.RUnlock()

	if !stale {
		return cfg
	}

	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	// 等锁期间其他调用方可能已完成重载
	p.mu.RLock()
	cfg, stale = p.cfg, p.isStale()
	p.mu.RUnlock()
	if !stale {
		return cfg
	}

	// 重载失败时继续使用旧快照
	if err := p.reload(); err != nil {
		p.onError(err)
		p.mu.Lock()
		p.loadedAt = p.now()
		p.stale = false
		p.mu.Unlock()
		return cfg
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *ViperProvider) Refresh() error {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()
	return p.reload()
}

// isStale 调用方需持有 mu
func (p *ViperProvider) isStale() bool {
	return p.stale || (p.ttl > 0 && p.now().Sub(p.loadedAt) > p.ttl)
}

// reload 调用方需持有 reloadMu
func (p *ViperProvider) reload() error {
	cfg, err := decode(p.v)
	if err != nil {
		return err
	}
	if err := cfg.Store.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.loadedAt = p.now()
	p.stale = false
	p.mu.Unlock()
	return nil
}

func (p *ViperProvider) Invalidate() {
	p.mu.Lock()
	p.stale = true
	p.mu.Unlock()
}

// StaticProvider 固定配置，主要用于测试
type StaticProvider struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewStaticProvider(cfg *Config) *StaticProvider {
	return &StaticProvider{cfg: cfg}
}

func (p *StaticProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *StaticProvider) Refresh() error { return nil }

func (p *StaticProvider) Invalidate() {}

// Set 替换配置快照
func (p *StaticProvider) Set(cfg *Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}
