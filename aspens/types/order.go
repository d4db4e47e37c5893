package types

import (
	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
)

// OrderRequest 构建完成、可提交的订单请求。
//
// Quantity 与 Price 的 scale 均等于市场的 PairDecimals；Quantity 非零。
// 由 OrderRequestBuilder 校验后创建，不可变，提交一次后即丢弃。
type OrderRequest struct {
	MarketID            string
	Side                Side
	Kind                OrderKind
	Quantity            fixedpoint.Amount  // pair decimals
	Price               *fixedpoint.Amount // pair decimals；nil 表示市价单
	BaseAccountAddress  string
	QuoteAccountAddress string
}

// Wire 转换为 RPC 载荷（定点整数按十进制字符串编码）
func (o OrderRequest) Wire() OrderPayload {
	payload := OrderPayload{
		MarketID:            o.MarketID,
		Side:                o.Side,
		Kind:                o.Kind,
		Quantity:            o.Quantity.RawString(),
		BaseAccountAddress:  o.BaseAccountAddress,
		QuoteAccountAddress: o.QuoteAccountAddress,
	}
	if o.Price != nil {
		price := o.Price.RawString()
		payload.Price = &price
	}
	return payload
}

// OrderPayload 订单的 wire 格式（所有整数字段为 pair decimals）
type OrderPayload struct {
	MarketID            string    `json:"market_id"`
	Side                Side      `json:"side"`
	Kind                OrderKind `json:"kind"`
	Quantity            string    `json:"quantity"`
	Price               *string   `json:"price,omitempty"`
	BaseAccountAddress  string    `json:"base_account_address"`
	QuoteAccountAddress string    `json:"quote_account_address"`
}

// SendOrderRequest 下单请求（载荷 + 对载荷字节的签名）
type SendOrderRequest struct {
	Order     OrderPayload `json:"order"`
	Signature string       `json:"signature"`
}

// Trade 一笔成交（quantity/price 为 pair decimals）
type Trade struct {
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	Quantity     string `json:"quantity"`
	Price        string `json:"price"`
}

// TransactionHash 服务端触发的链上交易哈希
type TransactionHash struct {
	HashType  string `json:"hash_type"` // 例如 "deposit" / "settlement" / "withdrawal"
	HashValue string `json:"hash_value"`
}

// SendOrderResponse 下单响应
type SendOrderResponse struct {
	OrderInBook       bool              `json:"order_in_book"` // 剩余部分是否进入订单簿
	OrderID           uint64            `json:"order_id"`
	Order             *OrderPayload     `json:"order,omitempty"`
	Trades            []Trade           `json:"trades"`
	TransactionHashes []TransactionHash `json:"transaction_hashes"`
}

// OrderToCancel 撤单目标
type OrderToCancel struct {
	MarketID     string `json:"market_id"`
	Side         Side   `json:"side"`
	TokenAddress string `json:"token_address"`
	OrderID      uint64 `json:"order_id"`
}

// CancelOrderRequest 撤单请求（目标 + 对目标字节的签名）
type CancelOrderRequest struct {
	Order     OrderToCancel `json:"order"`
	Signature string        `json:"signature"`
}

// CancelOrderResponse 撤单响应
type CancelOrderResponse struct {
	OrderCanceled     bool              `json:"order_canceled"`
	TransactionHashes []TransactionHash `json:"transaction_hashes"`
}

// PriceLevel 订单簿价格档（pair decimals）
type PriceLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// OrderbookSnapshot 订单簿快照
type OrderbookSnapshot struct {
	MarketID  string       `json:"market_id"`
	Timestamp int64        `json:"timestamp"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// OrderbookEntry 订单簿流式条目
type OrderbookEntry struct {
	Timestamp int64      `json:"timestamp"`
	OrderID   uint64     `json:"order_id"`
	MarketID  string     `json:"market_id"`
	Side      Side       `json:"side"`
	Quantity  string     `json:"quantity"` // pair decimals
	Price     string     `json:"price"`    // pair decimals
	Maker     string     `json:"maker"`
	State     OrderState `json:"state"`
}

// TradeEvent 成交流式条目
type TradeEvent struct {
	Timestamp int64  `json:"timestamp"`
	MarketID  string `json:"market_id"`
	Trade     Trade  `json:"trade"`
}

// BalanceEntry 服务端账本余额（native token decimals）
type BalanceEntry struct {
	Network   string `json:"network"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Available string `json:"available"` // 可用余额
	Locked    string `json:"locked"`    // 挂单锁定余额
}

// GetBalancesResponse 余额查询响应
type GetBalancesResponse struct {
	Owner    string         `json:"owner"`
	Balances []BalanceEntry `json:"balances"`
}

// SettlementAmount 结算金额：Raw 的 scale 恒等于目标代币的原生小数位数，
// 而非 pair decimals。按需派生，不持久化。
type SettlementAmount struct {
	Raw       fixedpoint.Amount
	Direction Direction
	Token     Token
	ChainID   int64
}
