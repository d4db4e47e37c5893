package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/types"
)

// TokenBalance 一个代币的三方余额视图（全部为人类十进制）：
// 钱包里的、交易合约内可用的、挂单锁定的。
type TokenBalance struct {
	Network   string
	Symbol    string
	Decimals  uint8
	Wallet    string
	Available string
	Locked    string
}

// GetBalances 查询服务端账本余额（Available/Locked 为 native decimals 整数字符串）
func (c *Client) GetBalances(ctx context.Context) (*types.GetBalancesResponse, error) {
	if err := c.ensureConnected(ctx, "get_balances"); err != nil {
		return nil, err
	}
	var resp types.GetBalancesResponse
	params := map[string]string{"owner": c.signer.Address().Hex()}
	if err := c.http.get(ctx, "get_balances", EndpointGetBalances, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChainBalances 直接从链上查询指定网络所有代币的余额。
// 逐代币三次 view 调用（钱包 / 可用 / 锁定），顺序执行。
func (c *Client) ChainBalances(ctx context.Context, network string) ([]TokenBalance, error) {
	if err := c.ensureConnected(ctx, "chain_balances"); err != nil {
		return nil, err
	}

	reg := c.registry.Load()
	chain, ok := reg.ChainByNetwork(network)
	if !ok {
		return nil, fmt.Errorf("未知网络 %q (可选: %v)", network, reg.Networks())
	}

	cc, err := c.chainClient(chain)
	if err != nil {
		return nil, err
	}

	owner := c.signer.Address()
	tradeAddr := common.HexToAddress(chain.TradeContract)

	balances := make([]TokenBalance, 0, len(chain.Tokens))
	for _, symbol := range reg.TokenSymbols(network) {
		token, _ := reg.TokenBySymbol(network, symbol)
		tokenAddr := common.HexToAddress(token.Address)

		wallet, err := cc.BalanceOf(ctx, tokenAddr, owner)
		if err != nil {
			return nil, err
		}
		available, err := cc.AvailableBalance(ctx, tradeAddr, tokenAddr, owner)
		if err != nil {
			return nil, err
		}
		locked, err := cc.LockedBalance(ctx, tradeAddr, tokenAddr, owner)
		if err != nil {
			return nil, err
		}

		balances = append(balances, TokenBalance{
			Network:   chain.Network,
			Symbol:    token.Symbol,
			Decimals:  token.Decimals,
			Wallet:    humanNative(wallet, token.Decimals),
			Available: humanNative(available, token.Decimals),
			Locked:    humanNative(locked, token.Decimals),
		})
	}
	return balances, nil
}

// humanNative 把 native decimals 整数渲染为人类十进制（呈现用）
func humanNative(magnitude *big.Int, decimals uint8) string {
	amount, err := fixedpoint.FromRaw(magnitude, decimals)
	if err != nil {
		return magnitude.String()
	}
	return amount.Human()
}
