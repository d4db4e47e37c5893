package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aspens-xyz/aspens-go/aspens/types"
)

// ErrNotInitialized 在会话建立之前调用了需要 Connected 状态的操作
var ErrNotInitialized = errors.New("客户端未初始化")

// InvalidQuantityError 订单数量语义校验失败（解析后 magnitude 为零）
type InvalidQuantityError struct {
	Input        string // 用户输入的原始数量
	MarketID     string
	PairDecimals uint8
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("无效的订单数量 %q: 在市场 %s 的精度 (pair_decimals=%d) 下为零，零数量订单不会被提交",
		e.Input, e.MarketID, e.PairDecimals)
}

// InvalidMarketError 引用的市场不在会话的市场注册表中
type InvalidMarketError struct {
	MarketID  string
	Available []string // 注册表中可用的市场 ID
}

func (e *InvalidMarketError) Error() string {
	return fmt.Sprintf("市场 %q 不在配置中，可用市场: %s", e.MarketID, strings.Join(e.Available, ", "))
}

// UnsupportedDirectionError 结算解析器收到未定义的方向/流向组合
type UnsupportedDirectionError struct {
	Side      types.Side
	Direction types.Direction
}

func (e *UnsupportedDirectionError) Error() string {
	return fmt.Sprintf("不支持的结算方向组合: side=%s direction=%s", e.Side, e.Direction)
}

// TransportError RPC 或链协作者通信失败。原样向上传播，核心不做任何
// 自动重试——金融副作用必须由调用方控制。
type TransportError struct {
	Op  string // 失败的操作，例如 "place_order" / "get_config"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("传输失败 [%s] %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// notInitialized 包装 ErrNotInitialized 并附带操作上下文
func notInitialized(op string) error {
	return fmt.Errorf("%s: %w（先调用 Initialize 建立会话）", op, ErrNotInitialized)
}
