package client

import (
	"errors"
	"testing"

	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/types"
)

func mustAmount(t *testing.T, value string, scale uint8) fixedpoint.Amount {
	t.Helper()
	amount, err := fixedpoint.FromHuman(value, scale)
	if err != nil {
		t.Fatalf("FromHuman(%q, %d) error: %v", value, scale, err)
	}
	return amount
}

func TestResolveTokenAmount(t *testing.T) {
	reg := testRegistry()
	usdc, _ := reg.TokenBySymbol("ethereum", "USDC")

	amount, err := ResolveTokenAmount("1.5", usdc, types.DirectionDeposit)
	if err != nil {
		t.Fatalf("ResolveTokenAmount error: %v", err)
	}
	if got := amount.Raw.RawString(); got != "1500000" {
		t.Errorf("Raw = %s, want 1500000 (USDC decimals=6)", got)
	}
	if amount.Raw.Scale() != 6 {
		t.Errorf("Scale = %d, want token native decimals 6", amount.Raw.Scale())
	}
	if amount.ChainID != 1 {
		t.Errorf("ChainID = %d, want 1", amount.ChainID)
	}
}

func TestResolveTokenAmountInvalidDirection(t *testing.T) {
	reg := testRegistry()
	usdc, _ := reg.TokenBySymbol("ethereum", "USDC")

	_, err := ResolveTokenAmount("1", usdc, types.Direction("TRANSFER"))
	var dirErr *UnsupportedDirectionError
	if !errors.As(err, &dirErr) {
		t.Fatalf("err = %v, want *UnsupportedDirectionError", err)
	}
}

func TestSettlementTokenTable(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::ETH::1::USDC")

	cases := []struct {
		side      types.Side
		direction types.Direction
		want      string
	}{
		{types.SideBid, types.DirectionDeposit, "USDC"},  // 买单付出 quote
		{types.SideBid, types.DirectionWithdraw, "ETH"},  // 买单收到 base
		{types.SideAsk, types.DirectionDeposit, "ETH"},   // 卖单付出 base
		{types.SideAsk, types.DirectionWithdraw, "USDC"}, // 卖单收到 quote
	}
	for _, tc := range cases {
		token, err := settlementToken(market, tc.side, tc.direction)
		if err != nil {
			t.Fatalf("settlementToken(%s, %s) error: %v", tc.side, tc.direction, err)
		}
		if token.Symbol != tc.want {
			t.Errorf("settlementToken(%s, %s) = %s, want %s", tc.side, tc.direction, token.Symbol, tc.want)
		}
	}

	_, err := settlementToken(market, types.Side("HOLD"), types.DirectionDeposit)
	var dirErr *UnsupportedDirectionError
	if !errors.As(err, &dirErr) {
		t.Fatalf("err = %v, want *UnsupportedDirectionError", err)
	}
}

func TestResolveOrderLegBase(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::ETH::1::USDC")

	// pair decimals 12 -> ETH 原生 18 位：补 6 个零
	quantity := mustAmount(t, "1000", 12) // raw 1000000000000000
	amount, err := ResolveOrderLeg(market, types.SideAsk, types.DirectionDeposit, quantity, nil)
	if err != nil {
		t.Fatalf("ResolveOrderLeg error: %v", err)
	}
	if amount.Token.Symbol != "ETH" {
		t.Fatalf("Token = %s, want ETH", amount.Token.Symbol)
	}
	if got := amount.Raw.RawString(); got != "1000000000000000000000" {
		t.Errorf("Raw = %s, want 1000000000000000000000", got)
	}
	if amount.Raw.Scale() != 18 {
		t.Errorf("Scale = %d, want 18", amount.Raw.Scale())
	}
}

func TestResolveOrderLegQuote(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::ETH::1::USDC")

	// 名义金额 1.5 × 2000 = 3000，先在 pair 域相乘 (scale 24)，
	// 再一次性缩放到 USDC 的 6 位
	quantity := mustAmount(t, "1.5", 12)
	price := mustAmount(t, "2000", 12)
	amount, err := ResolveOrderLeg(market, types.SideBid, types.DirectionDeposit, quantity, &price)
	if err != nil {
		t.Fatalf("ResolveOrderLeg error: %v", err)
	}
	if amount.Token.Symbol != "USDC" {
		t.Fatalf("Token = %s, want USDC", amount.Token.Symbol)
	}
	if got := amount.Raw.RawString(); got != "3000000000" {
		t.Errorf("Raw = %s, want 3000000000", got)
	}
	if got := amount.Raw.Human(); got != "3000" {
		t.Errorf("Human = %s, want 3000", got)
	}
}

func TestResolveOrderLegQuoteSingleTruncation(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::WBTC::1::USDC")

	// 0.15 × 0.15 = 0.0225。先乘后缩放保留 0.0225 -> 22500 (USDC 6 位)。
	// 如果分别缩放再相乘会引入两次截断，结果不同。
	quantity := mustAmount(t, "0.15", 8)
	price := mustAmount(t, "0.15", 8)
	amount, err := ResolveOrderLeg(market, types.SideBid, types.DirectionDeposit, quantity, &price)
	if err != nil {
		t.Fatalf("ResolveOrderLeg error: %v", err)
	}
	if got := amount.Raw.RawString(); got != "22500" {
		t.Errorf("Raw = %s, want 22500", got)
	}
}

func TestResolveOrderLegQuoteWithoutPrice(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::ETH::1::USDC")

	quantity := mustAmount(t, "1", 12)
	_, err := ResolveOrderLeg(market, types.SideBid, types.DirectionDeposit, quantity, nil)
	if err == nil {
		t.Fatal("quote leg without price must fail")
	}
}

func TestResolveOrderLegTruncationToZero(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::ETH::1::USDC")

	// 名义金额 1e-12，USDC 6 位下无法表达：截断到零是合法结果，
	// 不是错误，由调用方检查 IsZero
	quantity := mustAmount(t, "0.000001", 12)
	price := mustAmount(t, "0.000001", 12)
	amount, err := ResolveOrderLeg(market, types.SideBid, types.DirectionDeposit, quantity, &price)
	if err != nil {
		t.Fatalf("ResolveOrderLeg error: %v", err)
	}
	if !amount.Raw.IsZero() {
		t.Errorf("Raw = %s, want zero", amount.Raw.RawString())
	}
}

func TestResolveOrderLegScaleDown(t *testing.T) {
	reg := testRegistry()
	market, _ := reg.MarketByID("1::ETH::1::USDC")

	// pair 12 -> USDC 6：向下缩放截断小数尾巴（绝不四舍五入）
	quantity := mustAmount(t, "1", 12)
	price := mustAmount(t, "0.9999999", 12)
	amount, err := ResolveOrderLeg(market, types.SideBid, types.DirectionDeposit, quantity, &price)
	if err != nil {
		t.Fatalf("ResolveOrderLeg error: %v", err)
	}
	// 0.9999999 -> 999999 (6 位截断，不进位到 1000000)
	if got := amount.Raw.RawString(); got != "999999" {
		t.Errorf("Raw = %s, want 999999", got)
	}
}
