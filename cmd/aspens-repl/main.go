package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/aspens-xyz/aspens-go/aspens/client"
	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/config"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

const replHelp = `commands:
  markets                                 list market IDs
  use <market>                            set the default market
  order [-raw] <bid|ask> <qty> [price]    place an order on the default market
                                          (-raw: qty/price are pair-decimal integers)
  cancel <bid|ask> <order-id>             cancel an order on the default market
  orderbook                               print the default market orderbook
  balances [network]                      ledger balances, or on-chain balances
  deposit <network> <symbol> <amount>     deposit into the trade contract
  withdraw <network> <symbol> <amount>    withdraw from the trade contract
  refresh                                 refetch chains and markets
  help                                    this text
  exit                                    quit`

// repl 交互会话状态
type repl struct {
	client *client.Client
	market string // 当前默认市场
}

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[REPL] Failed to load config: %v", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, OutputFile: cfg.Log.OutputFile}); err != nil {
		log.Fatalf("[REPL] Failed to init logger: %v", err)
	}
	if cfg.PrivateKey == "" {
		log.Fatalf("[REPL] %s not set", config.EnvPrivateKey)
	}
	signer, err := signing.NewKeySigner(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("[REPL] Invalid private key: %v", err)
	}

	c, err := client.New(client.Config{
		StackURL:       cfg.StackURL,
		Signer:         signer,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("[REPL] Failed to create client: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		log.Fatalf("[REPL] Failed to connect to %s: %v", cfg.StackURL, err)
	}

	fmt.Printf("connected to %s as %s\n", c.StackURL(), c.Address())
	fmt.Println(`type "help" for commands`)

	session := &repl{client: c, market: cfg.DefaultMarket}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("aspens[%s]> ", session.market)
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "exit" || fields[0] == "quit" {
			return
		}
		if err := session.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// dispatch 封闭的动词集合：不认识的输入报错，绝不猜测
func (r *repl) dispatch(ctx context.Context, verb string, args []string) error {
	switch verb {
	case "help":
		fmt.Println(replHelp)
		return nil
	case "markets":
		for _, id := range r.client.Registry().MarketIDs() {
			fmt.Println(id)
		}
		return nil
	case "use":
		if len(args) != 1 {
			return fmt.Errorf("usage: use <market>")
		}
		if _, err := r.client.Market(args[0]); err != nil {
			return err
		}
		r.market = args[0]
		return nil
	case "order":
		return r.order(ctx, args)
	case "cancel":
		return r.cancel(ctx, args)
	case "orderbook":
		return r.orderbook(ctx)
	case "balances":
		return r.balances(ctx, args)
	case "deposit":
		return r.settle(ctx, types.DirectionDeposit, args)
	case "withdraw":
		return r.settle(ctx, types.DirectionWithdraw, args)
	case "refresh":
		if err := r.client.RefreshConfig(ctx); err != nil {
			return err
		}
		fmt.Printf("registry v%d: %d markets\n", r.client.Registry().Version, len(r.client.Registry().Markets))
		return nil
	}
	return fmt.Errorf("unknown command %q (try \"help\")", verb)
}

func (r *repl) requireMarket() (string, error) {
	if r.market == "" {
		return "", fmt.Errorf(`no default market (use "use <market>")`)
	}
	return r.market, nil
}

func (r *repl) order(ctx context.Context, args []string) error {
	market, err := r.requireMarket()
	if err != nil {
		return err
	}
	raw := false
	if len(args) > 0 && args[0] == "-raw" {
		raw = true
		args = args[1:]
	}
	if len(args) != 2 && len(args) != 3 {
		return fmt.Errorf("usage: order [-raw] <bid|ask> <qty> [price]")
	}
	input := client.OrderInput{
		MarketID: market,
		Side:     parseSide(args[0]),
		Quantity: args[1],
	}
	if len(args) == 3 {
		input.Price = args[2]
	}
	// -raw：输入是 pair 精度整数，先还原成人类十进制再交给 SDK
	if raw {
		meta, err := r.client.Market(market)
		if err != nil {
			return err
		}
		quantity, err := fixedpoint.FromRawString(input.Quantity, meta.PairDecimals)
		if err != nil {
			return fmt.Errorf("invalid raw quantity %q: %w", input.Quantity, err)
		}
		input.Quantity = quantity.Human()
		if input.Price != "" {
			price, err := fixedpoint.FromRawString(input.Price, meta.PairDecimals)
			if err != nil {
				return fmt.Errorf("invalid raw price %q: %w", input.Price, err)
			}
			input.Price = price.Human()
		}
	}
	result, err := r.client.PlaceOrder(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("order %d  in book: %v\n", result.OrderID, result.OrderInBook)
	for _, trade := range result.Trades {
		fmt.Printf("  filled %s @ %s\n", trade.Quantity, trade.Price)
	}
	for _, hash := range result.TransactionHashes {
		fmt.Printf("  tx [%s] %s\n", hash.HashType, hash.HashValue)
	}
	return nil
}

func (r *repl) cancel(ctx context.Context, args []string) error {
	market, err := r.requireMarket()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: cancel <bid|ask> <order-id>")
	}
	id, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q", args[1])
	}
	resp, err := r.client.CancelOrder(ctx, market, parseSide(args[0]), id)
	if err != nil {
		return err
	}
	fmt.Printf("canceled: %v\n", resp.OrderCanceled)
	return nil
}

func (r *repl) orderbook(ctx context.Context) error {
	market, err := r.requireMarket()
	if err != nil {
		return err
	}
	book, err := r.client.GetOrderbook(ctx, market)
	if err != nil {
		return err
	}
	for i := len(book.Asks) - 1; i >= 0; i-- {
		fmt.Printf("  ASK %s x %s\n", book.Asks[i].Price, book.Asks[i].Quantity)
	}
	for _, level := range book.Bids {
		fmt.Printf("  BID %s x %s\n", level.Price, level.Quantity)
	}
	return nil
}

func (r *repl) balances(ctx context.Context, args []string) error {
	if len(args) == 1 {
		balances, err := r.client.ChainBalances(ctx, args[0])
		if err != nil {
			return err
		}
		for _, balance := range balances {
			fmt.Printf("  %-6s wallet=%s available=%s locked=%s\n", balance.Symbol, balance.Wallet, balance.Available, balance.Locked)
		}
		return nil
	}
	resp, err := r.client.GetBalances(ctx)
	if err != nil {
		return err
	}
	for _, balance := range resp.Balances {
		fmt.Printf("  %s/%-6s available=%s locked=%s\n", balance.Network, balance.Symbol, balance.Available, balance.Locked)
	}
	return nil
}

func (r *repl) settle(ctx context.Context, direction types.Direction, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: %s <network> <symbol> <amount>", strings.ToLower(string(direction)))
	}
	var result *client.SettlementResult
	var err error
	if direction == types.DirectionDeposit {
		result, err = r.client.Deposit(ctx, args[0], args[1], args[2])
	} else {
		result, err = r.client.Withdraw(ctx, args[0], args[1], args[2])
	}
	if err != nil {
		return err
	}
	if result.ApproveTxHash != "" {
		fmt.Printf("  approve tx: %s\n", result.ApproveTxHash)
	}
	fmt.Printf("  %s %s %s confirmed: %s\n", result.Direction, result.Amount, result.Symbol, result.TxHash)
	return nil
}

func parseSide(s string) types.Side {
	switch strings.ToLower(s) {
	case "bid", "buy":
		return types.SideBid
	case "ask", "sell":
		return types.SideAsk
	}
	return types.Side(s)
}
