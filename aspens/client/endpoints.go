package client

// Market Stack API 端点常量
const (
	// Configuration
	EndpointGetConfig = "/v1/config"

	// Trading
	EndpointSendOrder   = "/v1/order"
	EndpointCancelOrder = "/v1/order/cancel"

	// Market data
	EndpointGetOrderbook = "/v1/orderbook"
	EndpointGetBalances  = "/v1/balances"

	// Streams (websocket)
	EndpointStreamOrderbook = "/v1/orderbook/stream"
	EndpointStreamTrades    = "/v1/trades/stream"
)
