package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
)

// ERC20ABI 标准 ERC-20 接口（授权 / 余额）
const ERC20ABI = `[
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// TradeContractABI 交易合约接口（入金 / 出金 / 余额查询）
const TradeContractABI = `[
	{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"getBalance","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getLockedBalance","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// TxResult 链上交易结果
type TxResult struct {
	Hash    string // 交易哈希
	GasUsed uint64
}

// ChainClient 链协作者接口："发交易、拿回执"。
// 金额一律是目标代币原生小数位数下的整数。
type ChainClient interface {
	// Allowance 查询 ERC-20 授权额度
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// Approve 设置 ERC-20 授权并等待确认
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (TxResult, error)
	// BalanceOf 查询钱包的 ERC-20 余额
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// Deposit 调用交易合约入金并等待确认
	Deposit(ctx context.Context, tradeContract, token common.Address, amount *big.Int) (TxResult, error)
	// Withdraw 调用交易合约出金并等待确认
	Withdraw(ctx context.Context, tradeContract, token common.Address, amount *big.Int) (TxResult, error)
	// AvailableBalance 查询交易合约内的可用余额
	AvailableBalance(ctx context.Context, tradeContract, token, owner common.Address) (*big.Int, error)
	// LockedBalance 查询交易合约内的挂单锁定余额
	LockedBalance(ctx context.Context, tradeContract, token, owner common.Address) (*big.Int, error)
	// GasBalance 查询原生代币余额（gas 预检查用）
	GasBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	// Close 释放连接
	Close()
}

// ChainDialer 链协作者工厂
type ChainDialer func(chain types.Chain, signer signing.Signer) (ChainClient, error)

// ethChainClient 基于 ethclient 的链协作者实现
type ethChainClient struct {
	client   *ethclient.Client
	signer   *signing.KeySigner
	chainID  *big.Int
	erc20ABI abi.ABI
	tradeABI abi.ABI
}

// DialEthChain 连接链 RPC 节点并创建链协作者。
// 链上交易需要本地私钥构造签名，所以要求 signer 是 *signing.KeySigner。
func DialEthChain(chain types.Chain, signer signing.Signer) (ChainClient, error) {
	keySigner, ok := signer.(*signing.KeySigner)
	if !ok {
		return nil, fmt.Errorf("链上操作需要本地私钥签名器 (network=%s)", chain.Network)
	}
	if chain.RPCURL == "" {
		return nil, fmt.Errorf("链 %s 未配置 RPC 地址", chain.Network)
	}

	client, err := ethclient.Dial(chain.RPCURL)
	if err != nil {
		return nil, &TransportError{Op: "chain_dial", URL: chain.RPCURL, Err: err}
	}

	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("解析 ERC20 ABI 失败: %w", err)
	}
	tradeABI, err := abi.JSON(strings.NewReader(TradeContractABI))
	if err != nil {
		return nil, fmt.Errorf("解析交易合约 ABI 失败: %w", err)
	}

	return &ethChainClient{
		client:   client,
		signer:   keySigner,
		chainID:  big.NewInt(chain.ChainID),
		erc20ABI: erc20ABI,
		tradeABI: tradeABI,
	}, nil
}

func (c *ethChainClient) Close() {
	c.client.Close()
}

// callUint256 调用 view 函数并解析单个 uint256 返回值
func (c *ethChainClient) callUint256(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("打包 %s 参数失败: %w", method, err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, &TransportError{Op: "chain_call_" + method, URL: contract.Hex(), Err: err}
	}
	var value *big.Int
	if err := contractABI.UnpackIntoInterface(&value, method, result); err != nil {
		return nil, fmt.Errorf("解析 %s 结果失败: %w", method, err)
	}
	return value, nil
}

// sendTx 打包、签名、发送交易并等待一次确认
func (c *ethChainClient) sendTx(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, args ...interface{}) (TxResult, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return TxResult{}, fmt.Errorf("打包 %s 参数失败: %w", method, err)
	}

	from := c.signer.Address()

	// 获取 nonce
	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return TxResult{}, &TransportError{Op: "chain_nonce", URL: contract.Hex(), Err: err}
	}

	// 获取 gas 价格
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return TxResult{}, &TransportError{Op: "chain_gas_price", URL: contract.Hex(), Err: err}
	}

	// 估算 gas（失败说明交易会 revert，提前暴露）
	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &contract,
		Data:  data,
		Value: big.NewInt(0),
	})
	if err != nil {
		return TxResult{}, fmt.Errorf("估算 %s gas 失败（交易可能会回滚）: %w", method, err)
	}

	// 创建并签名交易
	tx := ethtypes.NewTransaction(nonce, contract, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), c.signer.PrivateKey())
	if err != nil {
		return TxResult{}, fmt.Errorf("签名交易失败: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return TxResult{}, &TransportError{Op: "chain_send_" + method, URL: contract.Hex(), Err: err}
	}

	receipt, err := c.waitReceipt(ctx, signedTx.Hash())
	if err != nil {
		return TxResult{}, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return TxResult{}, fmt.Errorf("交易 %s 执行失败 (hash=%s)", method, signedTx.Hash().Hex())
	}

	return TxResult{Hash: signedTx.Hash().Hex(), GasUsed: receipt.GasUsed}, nil
}

// waitReceipt 轮询等待一次确认
func (c *ethChainClient) waitReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, &TransportError{Op: "chain_wait_receipt", URL: hash.Hex(), Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *ethChainClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint256(ctx, c.erc20ABI, token, "allowance", owner, spender)
}

func (c *ethChainClient) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (TxResult, error) {
	return c.sendTx(ctx, c.erc20ABI, token, "approve", spender, amount)
}

func (c *ethChainClient) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.callUint256(ctx, c.erc20ABI, token, "balanceOf", owner)
}

func (c *ethChainClient) Deposit(ctx context.Context, tradeContract, token common.Address, amount *big.Int) (TxResult, error) {
	return c.sendTx(ctx, c.tradeABI, tradeContract, "deposit", token, amount)
}

func (c *ethChainClient) Withdraw(ctx context.Context, tradeContract, token common.Address, amount *big.Int) (TxResult, error) {
	return c.sendTx(ctx, c.tradeABI, tradeContract, "withdraw", token, amount)
}

func (c *ethChainClient) AvailableBalance(ctx context.Context, tradeContract, token, owner common.Address) (*big.Int, error) {
	return c.callUint256(ctx, c.tradeABI, tradeContract, "getBalance", token, owner)
}

func (c *ethChainClient) LockedBalance(ctx context.Context, tradeContract, token, owner common.Address) (*big.Int, error) {
	return c.callUint256(ctx, c.tradeABI, tradeContract, "getLockedBalance", token, owner)
}

func (c *ethChainClient) GasBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, &TransportError{Op: "chain_gas_balance", URL: owner.Hex(), Err: err}
	}
	return balance, nil
}
