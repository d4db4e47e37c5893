package client

import (
	"fmt"

	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/types"
)

// 结算金额解析：把 pair decimals 域的金额换算到目标代币的链上原生精度。
//
// 两条路径：
//  1. 显式代币路径（入金/出金）：用户直接点名代币，目标 scale 就是该代币
//     的原生小数位数，与 pair/side 无关。
//  2. 订单驱动路径：根据订单方向与结算流向选出 base 或 quote 腿，
//     再做一次（且仅一次）Rescale。quote 腿的名义金额 quantity × price
//     在 pair 定点域内先乘后缩放——分别缩放再相乘会叠加两次截断误差。

// ResolveTokenAmount 显式代币路径：把人类输入换算为该代币的链上整数金额
func ResolveTokenAmount(value string, token types.Token, direction types.Direction) (types.SettlementAmount, error) {
	if direction != types.DirectionDeposit && direction != types.DirectionWithdraw {
		return types.SettlementAmount{}, &UnsupportedDirectionError{Direction: direction}
	}
	raw, err := fixedpoint.FromHuman(value, token.Decimals)
	if err != nil {
		return types.SettlementAmount{}, fmt.Errorf("结算金额换算失败 (token=%s decimals=%d): %w", token.Symbol, token.Decimals, err)
	}
	return types.SettlementAmount{
		Raw:       raw,
		Direction: direction,
		Token:     token,
		ChainID:   token.ChainID,
	}, nil
}

// settlementToken 根据订单方向与结算流向选出本腿对应的代币。
//
// BID（用 quote 买 base）：入金腿付出 quote，出金腿收到 base。
// ASK（卖 base 换 quote）：同样的解析把方向反过来。
func settlementToken(market types.Market, side types.Side, direction types.Direction) (types.Token, error) {
	switch {
	case side == types.SideBid && direction == types.DirectionDeposit:
		return market.Quote, nil
	case side == types.SideBid && direction == types.DirectionWithdraw:
		return market.Base, nil
	case side == types.SideAsk && direction == types.DirectionDeposit:
		return market.Base, nil
	case side == types.SideAsk && direction == types.DirectionWithdraw:
		return market.Quote, nil
	}
	return types.Token{}, &UnsupportedDirectionError{Side: side, Direction: direction}
}

// ResolveOrderLeg 订单驱动路径：把成交的 pair 域数量（以及限价单的价格）
// 换算为本结算腿的链上整数金额。
//
// base 腿：Rescale(quantity, base.Decimals)。
// quote 腿：Rescale(Notional(quantity, price), quote.Decimals)——
// 乘法先在 pair 域完成（scale 2p），唯一一次截断发生在最后的 Rescale。
// quote 腿没有价格（市价单已成交路径之外）是未定义组合，直接报错。
//
// 截断到零是合法结果：表示该金额小到目标精度无法表达，
// 调用方通过 Raw.IsZero 检测，而不是收到错误。
func ResolveOrderLeg(
	market types.Market,
	side types.Side,
	direction types.Direction,
	quantity fixedpoint.Amount,
	price *fixedpoint.Amount,
) (types.SettlementAmount, error) {
	token, err := settlementToken(market, side, direction)
	if err != nil {
		return types.SettlementAmount{}, err
	}

	var raw fixedpoint.Amount
	if token.Symbol == market.Quote.Symbol && token.ChainID == market.Quote.ChainID {
		if price == nil {
			return types.SettlementAmount{}, fmt.Errorf(
				"结算解析失败 (market=%s side=%s): quote 腿需要价格才能计算名义金额", market.MarketID, side)
		}
		notional, err := fixedpoint.Notional(quantity, *price)
		if err != nil {
			return types.SettlementAmount{}, fmt.Errorf("结算解析失败 (market=%s): %w", market.MarketID, err)
		}
		raw, err = notional.Rescale(token.Decimals)
		if err != nil {
			return types.SettlementAmount{}, fmt.Errorf("结算解析失败 (market=%s token=%s): %w", market.MarketID, token.Symbol, err)
		}
	} else {
		raw, err = quantity.Rescale(token.Decimals)
		if err != nil {
			return types.SettlementAmount{}, fmt.Errorf("结算解析失败 (market=%s token=%s): %w", market.MarketID, token.Symbol, err)
		}
	}

	return types.SettlementAmount{
		Raw:       raw,
		Direction: direction,
		Token:     token,
		ChainID:   token.ChainID,
	}, nil
}
