package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

// State 客户端会话状态
type State int32

const (
	StateUninitialized State = iota // 零值：尚未配置
	StateConfigured                 // 已配置（注册表 + 端点就绪），尚未建立 RPC 会话
	StateConnected                  // RPC 会话已建立，市场注册表已缓存
	StateClosed                     // 会话已显式结束
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "uninitialized"
}

// Config 客户端配置
type Config struct {
	// StackURL Market Stack 端点
	StackURL string
	// Signer 签名协作者（下单 / 撤单 / 链上操作都需要）
	Signer signing.Signer
	// RequestTimeout 单次 RPC 超时，默认 60s
	RequestTimeout time.Duration
	// ChainDialer 链协作者工厂（缺省使用真实的 ethclient 连接；测试可注入）
	ChainDialer ChainDialer
}

// Client Market Stack 交易客户端（会话级门面）。
//
// 持有端点配置与市场注册表，把数值换算委托给 fixedpoint / 结算解析器，
// 把 I/O 委托给 RPC 和链协作者。自身不启动任何后台 goroutine，
// 所有等待都发生在调用方的操作里；数值换算同步、纯函数、可重入。
type Client struct {
	cfg    Config
	http   *httpClient
	signer signing.Signer

	state atomic.Int32

	// registry 原子替换的注册表快照：刷新配置时整体换指针，
	// 进行中的读取不会观察到半更新状态。
	registry atomic.Pointer[types.Registry]
	version  atomic.Uint64

	// initMu 串行化 Initialize / RefreshConfig。
	// 注意：RefreshConfig 不能与进行中的订单操作并发调用（见方法文档）。
	initMu sync.Mutex

	chainsMu sync.Mutex
	chains   map[int64]ChainClient
}

// New 创建客户端，进入 Configured 状态。此时不发起任何网络调用。
func New(cfg Config) (*Client, error) {
	if cfg.StackURL == "" {
		return nil, fmt.Errorf("配置无效: StackURL 不能为空")
	}
	if _, err := url.Parse(cfg.StackURL); err != nil {
		return nil, fmt.Errorf("配置无效: StackURL %q 解析失败: %w", cfg.StackURL, err)
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("配置无效: Signer 不能为空")
	}
	if cfg.ChainDialer == nil {
		cfg.ChainDialer = DialEthChain
	}

	c := &Client{
		cfg:    cfg,
		http:   newHTTPClient(cfg.StackURL, cfg.RequestTimeout),
		signer: cfg.Signer,
		chains: make(map[int64]ChainClient),
	}
	c.state.Store(int32(StateConfigured))
	return c, nil
}

// State 返回当前会话状态
func (c *Client) State() State {
	if c == nil || c.http == nil {
		return StateUninitialized
	}
	return State(c.state.Load())
}

// StackURL 返回 Market Stack 端点
func (c *Client) StackURL() string {
	return c.cfg.StackURL
}

// Address 返回签名者地址（十六进制）
func (c *Client) Address() string {
	return c.signer.Address().Hex()
}

// Initialize 显式建立 RPC 会话：拉取配置快照并缓存为注册表，
// 成功后进入 Connected。幂等；也会在第一次 RPC 操作时被惰性触发。
func (c *Client) Initialize(ctx context.Context) error {
	if c.State() == StateUninitialized {
		return notInitialized("initialize")
	}
	if c.State() == StateClosed {
		return fmt.Errorf("initialize: 会话已关闭: %w", ErrNotInitialized)
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.State() == StateConnected {
		return nil
	}

	if err := c.fetchRegistryLocked(ctx); err != nil {
		return err
	}
	c.state.Store(int32(StateConnected))
	logger.Logger.WithField("stack_url", c.cfg.StackURL).Info("会话已建立")
	return nil
}

// ensureConnected 惰性初始化：Configured 状态下第一次 RPC 调用会先建立会话
func (c *Client) ensureConnected(ctx context.Context, op string) error {
	switch c.State() {
	case StateUninitialized:
		return notInitialized(op)
	case StateClosed:
		return fmt.Errorf("%s: 会话已关闭: %w", op, ErrNotInitialized)
	case StateConnected:
		return nil
	}
	return c.Initialize(ctx)
}

// Registry 返回当前注册表快照（Connected 之前为 nil）
func (c *Client) Registry() *types.Registry {
	return c.registry.Load()
}

// RefreshConfig 重新拉取配置并原子替换注册表，版本号递增。
//
// 非重入安全：不要与进行中的订单操作并发调用——提交中的订单可能引用
// 旧注册表里的市场。调用方负责错开刷新与下单。
func (c *Client) RefreshConfig(ctx context.Context) error {
	if err := c.ensureConnected(ctx, "refresh_config"); err != nil {
		return err
	}
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.fetchRegistryLocked(ctx)
}

// fetchRegistryLocked 拉取配置并替换注册表（调用方持有 initMu）
func (c *Client) fetchRegistryLocked(ctx context.Context) error {
	var resp types.GetConfigResponse
	if err := c.http.get(ctx, "get_config", EndpointGetConfig, nil, &resp); err != nil {
		return err
	}
	version := c.version.Add(1)
	c.registry.Store(types.NewRegistry(version, resp))
	logger.Logger.WithFields(map[string]interface{}{
		"version": version,
		"chains":  len(resp.Chains),
		"markets": len(resp.Markets),
	}).Debug("市场注册表已更新")
	return nil
}

// GetConfig 返回配置快照（惰性建立会话）
func (c *Client) GetConfig(ctx context.Context) (types.GetConfigResponse, error) {
	if err := c.ensureConnected(ctx, "get_config"); err != nil {
		return types.GetConfigResponse{}, err
	}
	reg := c.registry.Load()
	return types.GetConfigResponse{Chains: reg.Chains, Markets: reg.Markets}, nil
}

// Market 在注册表中查找市场，找不到返回 *InvalidMarketError
func (c *Client) Market(marketID string) (types.Market, error) {
	reg := c.registry.Load()
	if reg == nil {
		return types.Market{}, notInitialized("market_lookup")
	}
	market, ok := reg.MarketByID(marketID)
	if !ok {
		return types.Market{}, &InvalidMarketError{MarketID: marketID, Available: reg.MarketIDs()}
	}
	return market, nil
}

// Close 结束会话。Connected 之后唯一的状态转换就是这里的显式 teardown；
// 不存在自动重连，之后的操作都返回 NotInitialized。
func (c *Client) Close() error {
	if c.State() == StateUninitialized {
		return nil
	}
	c.chainsMu.Lock()
	for _, chain := range c.chains {
		chain.Close()
	}
	c.chains = make(map[int64]ChainClient)
	c.chainsMu.Unlock()
	c.state.Store(int32(StateClosed))
	return nil
}

// chainClient 返回指定链的协作者连接（按 chain ID 缓存）
func (c *Client) chainClient(chain types.Chain) (ChainClient, error) {
	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()
	if existing, ok := c.chains[chain.ChainID]; ok {
		return existing, nil
	}
	cc, err := c.cfg.ChainDialer(chain, c.signer)
	if err != nil {
		return nil, err
	}
	c.chains[chain.ChainID] = cc
	return cc, nil
}
