package client

import (
	"context"
	"fmt"

	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

// TradeFill 人类可读呈现的一笔成交
type TradeFill struct {
	MakerOrderID uint64
	TakerOrderID uint64
	Quantity     string // 人类十进制
	Price        string // 人类十进制
}

// OrderResult 下单结果。Quantity/Price 等人类可读字段仅用于呈现，
// 任何后续计算都必须使用 Raw 里的定点整数。
type OrderResult struct {
	OrderID           uint64
	OrderInBook       bool
	Trades            []TradeFill
	TransactionHashes []types.TransactionHash
	Raw               types.SendOrderResponse
}

// PlaceOrder 构建、签名并提交订单。
//
// 提交失败不自动重试：订单可能已经被接收，盲目重发会造成重复成交。
// 错误原样上抛，由调用方检查订单状态后决定。
func (c *Client) PlaceOrder(ctx context.Context, input OrderInput) (*OrderResult, error) {
	if err := c.ensureConnected(ctx, "place_order"); err != nil {
		return nil, err
	}

	address := c.signer.Address().Hex()
	if input.BaseAccountAddress == "" {
		input.BaseAccountAddress = address
	}
	if input.QuoteAccountAddress == "" {
		input.QuoteAccountAddress = address
	}

	builder := NewOrderRequestBuilder(c.registry.Load())
	request, err := builder.Build(input)
	if err != nil {
		return nil, err
	}

	market, err := c.Market(request.MarketID)
	if err != nil {
		return nil, err
	}

	payload := request.Wire()
	message, err := canonicalJSON(payload)
	if err != nil {
		return nil, err
	}
	signature, err := signing.SignMessageHex(c.signer, message)
	if err != nil {
		return nil, fmt.Errorf("订单签名失败: %w", err)
	}

	logger.Logger.WithFields(map[string]interface{}{
		"market":   request.MarketID,
		"side":     request.Side,
		"kind":     request.Kind,
		"quantity": payload.Quantity,
	}).Info("提交订单")

	var resp types.SendOrderResponse
	body := types.SendOrderRequest{Order: payload, Signature: signature}
	if err := c.http.post(ctx, "send_order", EndpointSendOrder, body, &resp); err != nil {
		return nil, err
	}

	result := &OrderResult{
		OrderID:           resp.OrderID,
		OrderInBook:       resp.OrderInBook,
		TransactionHashes: resp.TransactionHashes,
		Raw:               resp,
	}
	for _, trade := range resp.Trades {
		result.Trades = append(result.Trades, TradeFill{
			MakerOrderID: trade.MakerOrderID,
			TakerOrderID: trade.TakerOrderID,
			Quantity:     humanPair(trade.Quantity, market.PairDecimals),
			Price:        humanPair(trade.Price, market.PairDecimals),
		})
	}
	return result, nil
}

// CancelOrder 签名并提交撤单请求。
//
// token_address 指向该订单锁定的抵押代币：BID 锁定 quote，ASK 锁定 base。
func (c *Client) CancelOrder(ctx context.Context, marketID string, side types.Side, orderID uint64) (*types.CancelOrderResponse, error) {
	if err := c.ensureConnected(ctx, "cancel_order"); err != nil {
		return nil, err
	}
	if !side.Valid() {
		return nil, fmt.Errorf("无效的订单方向 %q", side)
	}

	market, err := c.Market(marketID)
	if err != nil {
		return nil, err
	}
	token, err := settlementToken(market, side, types.DirectionDeposit)
	if err != nil {
		return nil, err
	}

	target := types.OrderToCancel{
		MarketID:     market.MarketID,
		Side:         side,
		TokenAddress: token.Address,
		OrderID:      orderID,
	}
	message, err := canonicalJSON(target)
	if err != nil {
		return nil, err
	}
	signature, err := signing.SignMessageHex(c.signer, message)
	if err != nil {
		return nil, fmt.Errorf("撤单签名失败: %w", err)
	}

	logger.Logger.WithFields(map[string]interface{}{
		"market":   marketID,
		"order_id": orderID,
	}).Info("提交撤单")

	var resp types.CancelOrderResponse
	body := types.CancelOrderRequest{Order: target, Signature: signature}
	if err := c.http.post(ctx, "cancel_order", EndpointCancelOrder, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOrderbook 获取市场订单簿快照
func (c *Client) GetOrderbook(ctx context.Context, marketID string) (*types.OrderbookSnapshot, error) {
	if err := c.ensureConnected(ctx, "get_orderbook"); err != nil {
		return nil, err
	}
	if _, err := c.Market(marketID); err != nil {
		return nil, err
	}

	var resp types.OrderbookSnapshot
	params := map[string]string{"market_id": marketID}
	if err := c.http.get(ctx, "get_orderbook", EndpointGetOrderbook, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// humanPair 把 pair decimals 整数字符串渲染为人类十进制（仅呈现用）。
// 解析失败时原样返回，不让呈现层错误打断交易结果。
func humanPair(raw string, pairDecimals uint8) string {
	amount, err := fixedpoint.FromRawString(raw, pairDecimals)
	if err != nil {
		return raw
	}
	return amount.Human()
}
