package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

const (
	streamHandshakeTimeout = 30 * time.Second
	streamPingInterval     = 15 * time.Second
	streamWriteTimeout     = 10 * time.Second
	streamReadTimeout      = 60 * time.Second
)

// OrderbookHandler 订单簿条目回调（在读循环 goroutine 中调用）
type OrderbookHandler func(entry types.OrderbookEntry)

// TradeHandler 成交条目回调
type TradeHandler func(event types.TradeEvent)

// StreamOrderbook 订阅市场的订单簿事件流，阻塞直到 ctx 取消或连接断开。
//
// 连接断开不自动重连：流中断期间错过的事件无法补齐，悄悄重连会让
// 调用方在不完整的订单簿上做决策。断开原样返回错误，由调用方决定
// 是否重新订阅。ctx 取消时返回 ctx.Err()。
func (c *Client) StreamOrderbook(ctx context.Context, marketID string, handler OrderbookHandler) error {
	if err := c.ensureConnected(ctx, "stream_orderbook"); err != nil {
		return err
	}
	if _, err := c.Market(marketID); err != nil {
		return err
	}
	return c.stream(ctx, EndpointStreamOrderbook, marketID, func(data []byte) error {
		var entry types.OrderbookEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("解析订单簿条目失败: %w", err)
		}
		handler(entry)
		return nil
	})
}

// StreamTrades 订阅市场的成交事件流，语义同 StreamOrderbook。
func (c *Client) StreamTrades(ctx context.Context, marketID string, handler TradeHandler) error {
	if err := c.ensureConnected(ctx, "stream_trades"); err != nil {
		return err
	}
	if _, err := c.Market(marketID); err != nil {
		return err
	}
	return c.stream(ctx, EndpointStreamTrades, marketID, func(data []byte) error {
		var event types.TradeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("解析成交条目失败: %w", err)
		}
		handler(event)
		return nil
	})
}

// stream 建立 WebSocket 连接并运行读循环
func (c *Client) stream(ctx context.Context, endpoint, marketID string, dispatch func([]byte) error) error {
	wsURL, err := c.websocketURL(endpoint, marketID)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: streamHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return &TransportError{Op: "stream_dial", URL: wsURL, Err: err}
	}
	defer conn.Close()

	logger.Logger.WithFields(map[string]interface{}{
		"url":    wsURL,
		"market": marketID,
	}).Info("事件流已连接")

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	// ctx 取消时关闭连接，中断阻塞中的 ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// 心跳
	go func() {
		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(streamWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Op: "stream_read", URL: wsURL, Err: err}
		}
		if dispatchErr := dispatch(data); dispatchErr != nil {
			// 无法解析的条目只记录，不中断流
			logger.Logger.WithField("market", marketID).Warnf("丢弃事件: %v", dispatchErr)
		}
	}
}

// websocketURL 把 Stack 的 HTTP 端点换算为 WebSocket 地址
func (c *Client) websocketURL(endpoint, marketID string) (string, error) {
	base, err := url.Parse(c.cfg.StackURL)
	if err != nil {
		return "", fmt.Errorf("解析 StackURL 失败: %w", err)
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + endpoint
	query := base.Query()
	query.Set("market_id", marketID)
	base.RawQuery = query.Encode()
	return base.String(), nil
}
