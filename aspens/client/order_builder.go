package client

import (
	"fmt"

	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/types"
)

// OrderRequestBuilder 把用户输入的数量/价格换算为 pair decimals 并构建
// OrderRequest。纯转换，无副作用：构建结果由 TradingClient 提交，
// 这里绝不直接发送。
type OrderRequestBuilder struct {
	registry registryView
}

// registryView 构建器需要的注册表只读视图
type registryView interface {
	MarketByID(marketID string) (types.Market, bool)
	MarketIDs() []string
}

// NewOrderRequestBuilder 创建订单构建器
func NewOrderRequestBuilder(registry registryView) *OrderRequestBuilder {
	return &OrderRequestBuilder{registry: registry}
}

// OrderInput 用户输入
type OrderInput struct {
	MarketID string
	Side     types.Side
	Quantity string // 人类可读的十进制字符串
	Price    string // 可选；为空表示市价单
	// 账户地址（base / quote 两侧），由 TradingClient 填充签名者地址
	BaseAccountAddress  string
	QuoteAccountAddress string
}

// Build 校验输入并产出 pair decimals 精度的订单请求。
//
// 所有本地可证明的错误都在任何网络调用之前发现：
//   - 市场不在注册表中 -> *InvalidMarketError
//   - 数量解析失败 -> *fixedpoint.ParseError
//   - 数量在 pair 精度下为零 -> *InvalidQuantityError（零数量订单绝不提交）
//
// 价格截断到零不是错误（低价代币在低 pair_decimals 市场下的合法结果），
// 由调用方通过 Price.IsZero 自行决定如何呈现。
func (b *OrderRequestBuilder) Build(input OrderInput) (types.OrderRequest, error) {
	if !input.Side.Valid() {
		return types.OrderRequest{}, fmt.Errorf("无效的订单方向 %q", input.Side)
	}

	market, ok := b.registry.MarketByID(input.MarketID)
	if !ok {
		return types.OrderRequest{}, &InvalidMarketError{
			MarketID:  input.MarketID,
			Available: b.registry.MarketIDs(),
		}
	}

	quantity, err := fixedpoint.FromHuman(input.Quantity, market.PairDecimals)
	if err != nil {
		return types.OrderRequest{}, fmt.Errorf("数量换算失败 (market=%s): %w", market.MarketID, err)
	}
	if quantity.IsZero() {
		return types.OrderRequest{}, &InvalidQuantityError{
			Input:        input.Quantity,
			MarketID:     market.MarketID,
			PairDecimals: market.PairDecimals,
		}
	}

	request := types.OrderRequest{
		MarketID:            market.MarketID,
		Side:                input.Side,
		Kind:                types.OrderKindMarket,
		Quantity:            quantity,
		BaseAccountAddress:  input.BaseAccountAddress,
		QuoteAccountAddress: input.QuoteAccountAddress,
	}

	if input.Price != "" {
		price, err := fixedpoint.FromHuman(input.Price, market.PairDecimals)
		if err != nil {
			return types.OrderRequest{}, fmt.Errorf("价格换算失败 (market=%s): %w", market.MarketID, err)
		}
		request.Kind = types.OrderKindLimit
		request.Price = &price
	}

	return request, nil
}
