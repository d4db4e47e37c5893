package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/aspens-xyz/aspens-go/aspens/client"
	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/config"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

const usage = `Usage: aspens-cli [-config file] <command> [args]

Commands:
  config                                  show chains and markets
  markets                                 list market IDs
  orderbook <market>                      print orderbook snapshot
  order [-raw] <market> <bid|ask> <qty> [price]
                                          place an order (no price = market order;
                                          -raw: qty/price are pair-decimal integers)
  cancel <market> <bid|ask> <order-id>    cancel an order
  balances [network]                      server ledger, or on-chain when network given
  deposit <network> <symbol> <amount>     deposit into the trade contract
  withdraw <network> <symbol> <amount>    withdraw from the trade contract
  watch <orderbook|trades> <market>       follow an event stream (Ctrl+C to stop)
`

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[CLI] Failed to load config: %v", err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("[CLI] Failed to init logger: %v", err)
	}

	if cfg.PrivateKey == "" {
		log.Fatalf("[CLI] %s not set", config.EnvPrivateKey)
	}
	signer, err := signing.NewKeySigner(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("[CLI] Invalid private key: %v", err)
	}

	c, err := client.New(client.Config{
		StackURL:       cfg.StackURL,
		Signer:         signer,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("[CLI] Failed to create client: %v", err)
	}
	defer c.Close()

	// Ctrl+C cancels in-flight operations and stream subscriptions
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, c, args); err != nil {
		log.Fatalf("[CLI] %v", err)
	}
}

func run(ctx context.Context, c *client.Client, args []string) error {
	command, rest := args[0], args[1:]
	switch command {
	case "config":
		return showConfig(ctx, c)
	case "markets":
		return showMarkets(ctx, c)
	case "orderbook":
		if len(rest) != 1 {
			return fmt.Errorf("usage: orderbook <market>")
		}
		return showOrderbook(ctx, c, rest[0])
	case "order":
		raw := false
		if len(rest) > 0 && (rest[0] == "-raw" || rest[0] == "--raw") {
			raw = true
			rest = rest[1:]
		}
		if len(rest) != 3 && len(rest) != 4 {
			return fmt.Errorf("usage: order [-raw] <market> <bid|ask> <qty> [price]")
		}
		price := ""
		if len(rest) == 4 {
			price = rest[3]
		}
		return placeOrder(ctx, c, rest[0], rest[1], rest[2], price, raw)
	case "cancel":
		if len(rest) != 3 {
			return fmt.Errorf("usage: cancel <market> <bid|ask> <order-id>")
		}
		return cancelOrder(ctx, c, rest[0], rest[1], rest[2])
	case "balances":
		network := ""
		if len(rest) == 1 {
			network = rest[0]
		}
		return showBalances(ctx, c, network)
	case "deposit":
		if len(rest) != 3 {
			return fmt.Errorf("usage: deposit <network> <symbol> <amount>")
		}
		return settle(ctx, c, types.DirectionDeposit, rest[0], rest[1], rest[2])
	case "withdraw":
		if len(rest) != 3 {
			return fmt.Errorf("usage: withdraw <network> <symbol> <amount>")
		}
		return settle(ctx, c, types.DirectionWithdraw, rest[0], rest[1], rest[2])
	case "watch":
		if len(rest) != 2 {
			return fmt.Errorf("usage: watch <orderbook|trades> <market>")
		}
		return watch(ctx, c, rest[0], rest[1])
	}
	return fmt.Errorf("unknown command %q", command)
}

func showConfig(ctx context.Context, c *client.Client) error {
	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tCHAIN ID\tTRADE CONTRACT\tTOKENS")
	for _, chain := range cfg.Chains {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", chain.Network, chain.ChainID, chain.TradeContract, len(chain.Tokens))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "MARKET\tPAIR DECIMALS\tBASE\tQUOTE")
	for _, market := range cfg.Markets {
		fmt.Fprintf(w, "%s\t%d\t%s (%d)\t%s (%d)\n",
			market.MarketID, market.PairDecimals,
			market.Base.Symbol, market.Base.Decimals,
			market.Quote.Symbol, market.Quote.Decimals)
	}
	return w.Flush()
}

func showMarkets(ctx context.Context, c *client.Client) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	for _, id := range c.Registry().MarketIDs() {
		fmt.Println(id)
	}
	return nil
}

func showOrderbook(ctx context.Context, c *client.Client, marketID string) error {
	book, err := c.GetOrderbook(ctx, marketID)
	if err != nil {
		return err
	}
	market, err := c.Market(marketID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tasks: %d\tbids: %d\n", book.MarketID, len(book.Asks), len(book.Bids))
	fmt.Fprintln(w, "SIDE\tPRICE\tQUANTITY")
	// asks 从高到低、bids 从高到低：价差在中间
	for i := len(book.Asks) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "ASK\t%s\t%s\n", humanLevel(book.Asks[i].Price, market.PairDecimals), humanLevel(book.Asks[i].Quantity, market.PairDecimals))
	}
	for _, level := range book.Bids {
		fmt.Fprintf(w, "BID\t%s\t%s\n", humanLevel(level.Price, market.PairDecimals), humanLevel(level.Quantity, market.PairDecimals))
	}
	return w.Flush()
}

func placeOrder(ctx context.Context, c *client.Client, marketID, side, quantity, price string, raw bool) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	market, err := c.Market(marketID)
	if err != nil {
		return err
	}

	// -raw：输入已经是 pair 精度整数，先还原成人类十进制再交给 SDK
	// （SDK 核心只接受人类十进制，绝不猜测输入属于哪个数值域）
	if raw {
		quantity, err = rawToHuman(quantity, market.PairDecimals)
		if err != nil {
			return err
		}
		if price != "" {
			price, err = rawToHuman(price, market.PairDecimals)
			if err != nil {
				return err
			}
		}
	}

	// 限价在 pair 精度下截断为零时先警告
	if price != "" {
		if p, err := fixedpoint.FromHuman(price, market.PairDecimals); err == nil && p.IsZero() {
			fmt.Fprintf(os.Stderr, "warning: price %s truncates to zero at pair_decimals=%d\n", price, market.PairDecimals)
		}
	}

	result, err := c.PlaceOrder(ctx, client.OrderInput{
		MarketID: marketID,
		Side:     parseSide(side),
		Quantity: quantity,
		Price:    price,
	})
	if err != nil {
		return err
	}

	fmt.Printf("order id: %d  in book: %v\n", result.OrderID, result.OrderInBook)
	for _, trade := range result.Trades {
		fmt.Printf("filled %s @ %s (maker %d / taker %d)\n", trade.Quantity, trade.Price, trade.MakerOrderID, trade.TakerOrderID)
	}
	for _, hash := range result.TransactionHashes {
		fmt.Printf("tx [%s] %s\n", hash.HashType, hash.HashValue)
	}
	return nil
}

func cancelOrder(ctx context.Context, c *client.Client, marketID, side, orderID string) error {
	var id uint64
	if _, err := fmt.Sscanf(orderID, "%d", &id); err != nil {
		return fmt.Errorf("invalid order id %q", orderID)
	}
	resp, err := c.CancelOrder(ctx, marketID, parseSide(side), id)
	if err != nil {
		return err
	}
	fmt.Printf("canceled: %v\n", resp.OrderCanceled)
	for _, hash := range resp.TransactionHashes {
		fmt.Printf("tx [%s] %s\n", hash.HashType, hash.HashValue)
	}
	return nil
}

func showBalances(ctx context.Context, c *client.Client, network string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if network != "" {
		balances, err := c.ChainBalances(ctx, network)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "NETWORK\tTOKEN\tWALLET\tAVAILABLE\tLOCKED")
		for _, balance := range balances {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", balance.Network, balance.Symbol, balance.Wallet, balance.Available, balance.Locked)
		}
		return w.Flush()
	}

	resp, err := c.GetBalances(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "owner: %s\n", resp.Owner)
	fmt.Fprintln(w, "NETWORK\tTOKEN\tAVAILABLE\tLOCKED")
	for _, balance := range resp.Balances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", balance.Network, balance.Symbol,
			humanLevel(balance.Available, balance.Decimals), humanLevel(balance.Locked, balance.Decimals))
	}
	return w.Flush()
}

func settle(ctx context.Context, c *client.Client, direction types.Direction, network, symbol, amount string) error {
	var result *client.SettlementResult
	var err error
	if direction == types.DirectionDeposit {
		result, err = c.Deposit(ctx, network, symbol, amount)
	} else {
		result, err = c.Withdraw(ctx, network, symbol, amount)
	}
	if err != nil {
		return err
	}
	if result.ApproveTxHash != "" {
		fmt.Printf("approve tx: %s\n", result.ApproveTxHash)
	}
	fmt.Printf("%s %s %s on %s confirmed: %s (gas %d)\n",
		result.Direction, result.Amount, result.Symbol, result.Network, result.TxHash, result.GasUsed)
	return nil
}

func watch(ctx context.Context, c *client.Client, kind, marketID string) error {
	switch kind {
	case "orderbook":
		return c.StreamOrderbook(ctx, marketID, func(entry types.OrderbookEntry) {
			fmt.Printf("%d %s %s order=%d qty=%s price=%s state=%s\n",
				entry.Timestamp, entry.MarketID, entry.Side, entry.OrderID, entry.Quantity, entry.Price, entry.State)
		})
	case "trades":
		return c.StreamTrades(ctx, marketID, func(event types.TradeEvent) {
			fmt.Printf("%d %s qty=%s price=%s maker=%d taker=%d\n",
				event.Timestamp, event.MarketID, event.Trade.Quantity, event.Trade.Price,
				event.Trade.MakerOrderID, event.Trade.TakerOrderID)
		})
	}
	return fmt.Errorf("unknown stream kind %q", kind)
}

func parseSide(s string) types.Side {
	switch s {
	case "bid", "buy", "BID":
		return types.SideBid
	case "ask", "sell", "ASK":
		return types.SideAsk
	}
	return types.Side(s)
}

// rawToHuman 把 pair 精度整数字符串还原为人类十进制
func rawToHuman(raw string, scale uint8) (string, error) {
	amount, err := fixedpoint.FromRawString(raw, scale)
	if err != nil {
		return "", fmt.Errorf("invalid raw amount %q: %w", raw, err)
	}
	return amount.Human(), nil
}

// humanLevel 把整数字符串按 scale 渲染为人类十进制（解析失败原样返回）
func humanLevel(raw string, scale uint8) string {
	amount, err := fixedpoint.FromRawString(raw, scale)
	if err != nil {
		return raw
	}
	return amount.Human()
}
