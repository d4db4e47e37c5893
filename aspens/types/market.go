package types

import (
	"fmt"
	"sort"
	"strings"
)

// Token 代币静态信息（来自服务端配置）
type Token struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"` // 链上原生小数位数
	ChainID  int64  `json:"chain_id"`
	Network  string `json:"network"`
}

// Chain 链静态信息（来自服务端配置）
type Chain struct {
	Network       string           `json:"network"`
	ChainID       int64            `json:"chain_id"`
	RPCURL        string           `json:"rpc_url"`
	TradeContract string           `json:"trade_contract"` // 交易合约地址
	Tokens        map[string]Token `json:"tokens"`         // symbol -> token
}

// Market 市场静态元数据（MarketDescriptor）。
//
// PairDecimals 在市场创建时确定且终生不变，可能小于、等于或大于
// 任一代币的原生小数位数。Market 是只读参考数据，按会话缓存。
type Market struct {
	MarketID     string `json:"market_id"` // 复合 ID：base_chain_id::base_symbol::quote_chain_id::quote_symbol
	Name         string `json:"name"`
	Base         Token  `json:"base"`
	Quote        Token  `json:"quote"`
	PairDecimals uint8  `json:"pair_decimals"` // 撮合引擎使用的定点小数位数
}

// GetConfigResponse 服务端配置快照
type GetConfigResponse struct {
	Chains  []Chain  `json:"chains"`
	Markets []Market `json:"markets"`
}

// Registry 市场注册表：一次 GetConfig 的不可变快照。
//
// 刷新配置时整体替换（绝不逐字段修改），Version 单调递增，
// 进行中的读取永远不会观察到半更新的注册表。
type Registry struct {
	Version uint64
	Chains  []Chain
	Markets []Market
}

// NewRegistry 由配置快照构建注册表
func NewRegistry(version uint64, cfg GetConfigResponse) *Registry {
	return &Registry{
		Version: version,
		Chains:  cfg.Chains,
		Markets: cfg.Markets,
	}
}

// MarketByID 按市场 ID 查找
func (r *Registry) MarketByID(marketID string) (Market, bool) {
	for _, m := range r.Markets {
		if m.MarketID == marketID {
			return m, true
		}
	}
	return Market{}, false
}

// ChainByNetwork 按网络名查找链
func (r *Registry) ChainByNetwork(network string) (Chain, bool) {
	for _, c := range r.Chains {
		if c.Network == network {
			return c, true
		}
	}
	return Chain{}, false
}

// ChainByID 按 chain ID 查找链
func (r *Registry) ChainByID(chainID int64) (Chain, bool) {
	for _, c := range r.Chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return Chain{}, false
}

// TokenBySymbol 按网络名和代币符号查找代币
func (r *Registry) TokenBySymbol(network, symbol string) (Token, bool) {
	chain, ok := r.ChainByNetwork(network)
	if !ok {
		return Token{}, false
	}
	token, ok := chain.Tokens[symbol]
	return token, ok
}

// MarketIDs 返回全部市场 ID（用于错误信息中列出可用市场）
func (r *Registry) MarketIDs() []string {
	ids := make([]string, 0, len(r.Markets))
	for _, m := range r.Markets {
		ids = append(ids, m.MarketID)
	}
	sort.Strings(ids)
	return ids
}

// Networks 返回全部网络名
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.Chains))
	for _, c := range r.Chains {
		names = append(names, c.Network)
	}
	sort.Strings(names)
	return names
}

// TokenSymbols 返回某条链上的全部代币符号
func (r *Registry) TokenSymbols(network string) []string {
	chain, ok := r.ChainByNetwork(network)
	if !ok {
		return nil
	}
	symbols := make([]string, 0, len(chain.Tokens))
	for symbol := range chain.Tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// FormatMarketID 构造复合市场 ID
func FormatMarketID(baseChainID int64, baseSymbol string, quoteChainID int64, quoteSymbol string) string {
	return fmt.Sprintf("%d::%s::%d::%s", baseChainID, strings.ToUpper(baseSymbol), quoteChainID, strings.ToUpper(quoteSymbol))
}
