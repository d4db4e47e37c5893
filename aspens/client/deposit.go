package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

// minGasBalance 发起链上交易前要求的最低原生代币余额（0.0001 ETH），
// 避免 approve 成功后因 gas 不足卡在半路。
var minGasBalance = big.NewInt(100_000_000_000_000)

// SettlementResult 入金/出金结果
type SettlementResult struct {
	Direction     types.Direction
	Network       string
	Symbol        string
	Amount        string // 人类十进制（实际上链的截断后金额）
	AmountRaw     string // native token decimals 整数
	ApproveTxHash string // 仅在本次操作补了授权时非空
	TxHash        string
	GasUsed       uint64
}

// Deposit 把代币从钱包存入交易合约。
//
// 流程：换算金额 -> gas 预检查 -> 按需授权 -> deposit -> 等待一次确认。
// 每一步失败都原样上抛、绝不重试：授权可能已经上链，重发整个流程
// 会重复花费 gas，由调用方检查链上状态后决定。
func (c *Client) Deposit(ctx context.Context, network, symbol, value string) (*SettlementResult, error) {
	return c.settle(ctx, network, symbol, value, types.DirectionDeposit)
}

// Withdraw 把代币从交易合约取回钱包。出金不需要授权。
func (c *Client) Withdraw(ctx context.Context, network, symbol, value string) (*SettlementResult, error) {
	return c.settle(ctx, network, symbol, value, types.DirectionWithdraw)
}

func (c *Client) settle(ctx context.Context, network, symbol, value string, direction types.Direction) (*SettlementResult, error) {
	op := "deposit"
	if direction == types.DirectionWithdraw {
		op = "withdraw"
	}
	if err := c.ensureConnected(ctx, op); err != nil {
		return nil, err
	}

	chain, token, err := c.lookupToken(network, symbol)
	if err != nil {
		return nil, err
	}

	amount, err := ResolveTokenAmount(value, token, direction)
	if err != nil {
		return nil, err
	}
	// 截断到零说明输入小于该代币的最小可表达单位，上链没有意义
	if amount.Raw.IsZero() {
		return nil, fmt.Errorf("%s 金额 %q 在 %s 精度 (decimals=%d) 下为零", op, value, token.Symbol, token.Decimals)
	}

	cc, err := c.chainClient(chain)
	if err != nil {
		return nil, err
	}

	owner := c.signer.Address()
	tokenAddr := common.HexToAddress(token.Address)
	tradeAddr := common.HexToAddress(chain.TradeContract)
	magnitude := amount.Raw.Magnitude()

	// gas 预检查
	gasBalance, err := cc.GasBalance(ctx, owner)
	if err != nil {
		return nil, err
	}
	if gasBalance.Cmp(minGasBalance) < 0 {
		return nil, fmt.Errorf("%s 预检查失败: 原生代币余额 %s wei 不足以支付 gas (network=%s)", op, gasBalance, chain.Network)
	}

	result := &SettlementResult{
		Direction: direction,
		Network:   chain.Network,
		Symbol:    token.Symbol,
		Amount:    amount.Raw.Human(),
		AmountRaw: amount.Raw.RawString(),
	}

	log := logger.Logger.WithFields(map[string]interface{}{
		"network": chain.Network,
		"symbol":  token.Symbol,
		"amount":  result.Amount,
	})

	var tx TxResult
	switch direction {
	case types.DirectionDeposit:
		// 钱包余额必须覆盖入金金额
		walletBalance, err := cc.BalanceOf(ctx, tokenAddr, owner)
		if err != nil {
			return nil, err
		}
		if walletBalance.Cmp(magnitude) < 0 {
			return nil, fmt.Errorf("入金失败: 钱包 %s 余额 %s 不足 (需要 %s)", token.Symbol, walletBalance, magnitude)
		}

		// 授权不足时补一笔 approve（额度足够就跳过，省一笔 gas）
		allowance, err := cc.Allowance(ctx, tokenAddr, owner, tradeAddr)
		if err != nil {
			return nil, err
		}
		if allowance.Cmp(magnitude) < 0 {
			log.Info("授权额度不足，先执行 approve")
			approveTx, err := cc.Approve(ctx, tokenAddr, tradeAddr, magnitude)
			if err != nil {
				return nil, fmt.Errorf("approve 失败: %w", err)
			}
			result.ApproveTxHash = approveTx.Hash
		}

		log.Info("执行入金")
		tx, err = cc.Deposit(ctx, tradeAddr, tokenAddr, magnitude)
		if err != nil {
			return nil, fmt.Errorf("入金失败: %w", err)
		}

	case types.DirectionWithdraw:
		// 可用余额必须覆盖出金金额（锁定部分不可取）
		available, err := cc.AvailableBalance(ctx, tradeAddr, tokenAddr, owner)
		if err != nil {
			return nil, err
		}
		if available.Cmp(magnitude) < 0 {
			return nil, fmt.Errorf("出金失败: 可用 %s 余额 %s 不足 (需要 %s)", token.Symbol, available, magnitude)
		}

		log.Info("执行出金")
		tx, err = cc.Withdraw(ctx, tradeAddr, tokenAddr, magnitude)
		if err != nil {
			return nil, fmt.Errorf("出金失败: %w", err)
		}

	default:
		return nil, &UnsupportedDirectionError{Direction: direction}
	}

	result.TxHash = tx.Hash
	result.GasUsed = tx.GasUsed
	log.WithField("tx_hash", tx.Hash).Info("结算交易已确认")
	return result, nil
}

// lookupToken 在注册表中定位链与代币
func (c *Client) lookupToken(network, symbol string) (types.Chain, types.Token, error) {
	reg := c.registry.Load()
	if reg == nil {
		return types.Chain{}, types.Token{}, notInitialized("token_lookup")
	}
	chain, ok := reg.ChainByNetwork(network)
	if !ok {
		return types.Chain{}, types.Token{}, fmt.Errorf("未知网络 %q (可选: %v)", network, reg.Networks())
	}
	token, ok := reg.TokenBySymbol(network, symbol)
	if !ok {
		return types.Chain{}, types.Token{}, fmt.Errorf("网络 %s 上没有代币 %q (可选: %v)", network, symbol, reg.TokenSymbols(network))
	}
	return chain, token, nil
}
