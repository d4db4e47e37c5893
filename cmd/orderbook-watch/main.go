package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aspens-xyz/aspens-go/aspens/client"
	"github.com/aspens-xyz/aspens-go/aspens/fixedpoint"
	"github.com/aspens-xyz/aspens-go/aspens/signing"
	"github.com/aspens-xyz/aspens-go/aspens/types"
	"github.com/aspens-xyz/aspens-go/pkg/config"
	"github.com/aspens-xyz/aspens-go/pkg/logger"
)

const (
	bookDepth   = 10 // 每侧显示的价格档数
	tradeWindow = 8  // 显示最近成交的条数
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	bidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	askStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// level 聚合后的一个价格档
type level struct {
	price    string // pair decimals 整数（排序用）
	quantity fixedpoint.Amount
}

// model TUI 状态：订单簿由事件流增量维护
type model struct {
	marketID     string
	pairDecimals uint8

	// order_id -> 挂单（CONFIRMED 加入，终态移除）
	orders map[uint64]types.OrderbookEntry
	trades []types.TradeEvent

	entries      <-chan types.OrderbookEntry
	tradeEvents  <-chan types.TradeEvent
	streamErrors <-chan error

	lastUpdate   time.Time
	disconnected error
}

type entryMsg types.OrderbookEntry
type tradeMsg types.TradeEvent
type streamErrMsg struct{ err error }
type tickMsg time.Time

func waitForEntry(entries <-chan types.OrderbookEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-entries
		if !ok {
			return nil
		}
		return entryMsg(entry)
	}
}

func waitForTrade(trades <-chan types.TradeEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-trades
		if !ok {
			return nil
		}
		return tradeMsg(event)
	}
}

func waitForStreamError(errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		return streamErrMsg{err: <-errs}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEntry(m.entries),
		waitForTrade(m.tradeEvents),
		waitForStreamError(m.streamErrors),
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case entryMsg:
		entry := types.OrderbookEntry(msg)
		switch entry.State {
		case types.OrderStatePending, types.OrderStateConfirmed:
			m.orders[entry.OrderID] = entry
		default:
			// MATCHED / CANCELED / SETTLED 离开订单簿
			delete(m.orders, entry.OrderID)
		}
		m.lastUpdate = time.Now()
		return m, waitForEntry(m.entries)

	case tradeMsg:
		m.trades = append(m.trades, types.TradeEvent(msg))
		if len(m.trades) > tradeWindow {
			m.trades = m.trades[len(m.trades)-tradeWindow:]
		}
		m.lastUpdate = time.Now()
		return m, waitForTrade(m.tradeEvents)

	case streamErrMsg:
		// 流断开不自动重连：错过的事件补不齐，显示断线状态等待退出
		m.disconnected = msg.err
		return m, nil

	case tickMsg:
		return m, tickCmd()
	}
	return m, nil
}

// aggregate 按价格聚合挂单
func (m model) aggregate(side types.Side) []level {
	byPrice := make(map[string]fixedpoint.Amount)
	for _, order := range m.orders {
		if order.Side != side {
			continue
		}
		quantity, err := fixedpoint.FromRawString(order.Quantity, m.pairDecimals)
		if err != nil {
			continue
		}
		if existing, ok := byPrice[order.Price]; ok {
			sum, err := existing.Add(quantity)
			if err != nil {
				continue
			}
			byPrice[order.Price] = sum
		} else {
			byPrice[order.Price] = quantity
		}
	}

	levels := make([]level, 0, len(byPrice))
	for price, quantity := range byPrice {
		levels = append(levels, level{price: price, quantity: quantity})
	}
	sort.Slice(levels, func(i, j int) bool {
		a, errA := fixedpoint.FromRawString(levels[i].price, m.pairDecimals)
		b, errB := fixedpoint.FromRawString(levels[j].price, m.pairDecimals)
		if errA != nil || errB != nil {
			return levels[i].price < levels[j].price
		}
		cmp, err := a.Cmp(b)
		if err != nil {
			return false
		}
		if side == types.SideBid {
			return cmp > 0 // bids 从高到低
		}
		return cmp < 0 // asks 从低到高
	})
	if len(levels) > bookDepth {
		levels = levels[:bookDepth]
	}
	return levels
}

func (m model) View() string {
	header := headerStyle.Render(fmt.Sprintf(" %s  orderbook ", m.marketID))

	asks := m.aggregate(types.SideAsk)
	bids := m.aggregate(types.SideBid)

	var askLines, bidLines string
	// asks 倒序渲染：最低卖价贴近价差
	for i := len(asks) - 1; i >= 0; i-- {
		askLines += askStyle.Render(fmt.Sprintf("%12s  %12s", m.human(asks[i].price), asks[i].quantity.Human())) + "\n"
	}
	for _, l := range bids {
		bidLines += bidStyle.Render(fmt.Sprintf("%12s  %12s", m.human(l.price), l.quantity.Human())) + "\n"
	}
	book := borderStyle.Render(fmt.Sprintf("%12s  %12s\n%s%s%s",
		"PRICE", "QUANTITY", askLines, dimStyle.Render("────────────  ────────────\n"), bidLines))

	var tradeLines string
	for i := len(m.trades) - 1; i >= 0; i-- {
		event := m.trades[i]
		tradeLines += fmt.Sprintf("%s  %s @ %s\n",
			time.Unix(event.Timestamp, 0).Format("15:04:05"),
			m.human(event.Trade.Quantity), m.human(event.Trade.Price))
	}
	if tradeLines == "" {
		tradeLines = dimStyle.Render("no trades yet\n")
	}
	tradesPane := borderStyle.Render("recent trades\n" + tradeLines)

	status := dimStyle.Render(fmt.Sprintf("orders: %d  last update: %s  (q to quit)",
		len(m.orders), formatSince(m.lastUpdate)))
	if m.disconnected != nil {
		status = askStyle.Render(fmt.Sprintf("stream disconnected: %v  (q to quit)", m.disconnected))
	}

	return header + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, book, "  ", tradesPane) + "\n" +
		status + "\n"
}

func (m model) human(raw string) string {
	amount, err := fixedpoint.FromRawString(raw, m.pairDecimals)
	if err != nil {
		return raw
	}
	return amount.Human()
}

func formatSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%.0fs ago", time.Since(t).Seconds())
}

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	marketID := flag.String("market", "", "market ID to watch")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Watch] Failed to load config: %v", err)
	}
	// TUI 模式日志只进文件，避免污染终端渲染
	logFile := cfg.Log.OutputFile
	if logFile == "" {
		logFile = "logs/orderbook-watch.log"
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, OutputFile: logFile}); err != nil {
		log.Fatalf("[Watch] Failed to init logger: %v", err)
	}
	if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
		logger.Logger.SetOutput(file)
	}

	market := *marketID
	if market == "" {
		market = cfg.DefaultMarket
	}
	if market == "" {
		log.Fatal("[Watch] No market given (use -market or default_market in config)")
	}
	if cfg.PrivateKey == "" {
		log.Fatalf("[Watch] %s not set", config.EnvPrivateKey)
	}
	signer, err := signing.NewKeySigner(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("[Watch] Invalid private key: %v", err)
	}

	c, err := client.New(client.Config{
		StackURL:       cfg.StackURL,
		Signer:         signer,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("[Watch] Failed to create client: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Initialize(ctx); err != nil {
		log.Fatalf("[Watch] Failed to connect: %v", err)
	}
	marketMeta, err := c.Market(market)
	if err != nil {
		log.Fatalf("[Watch] %v", err)
	}

	entries := make(chan types.OrderbookEntry, 256)
	trades := make(chan types.TradeEvent, 256)
	streamErrs := make(chan error, 2)

	go func() {
		err := c.StreamOrderbook(ctx, market, func(entry types.OrderbookEntry) {
			entries <- entry
		})
		if err != nil && ctx.Err() == nil {
			streamErrs <- err
		}
	}()
	go func() {
		err := c.StreamTrades(ctx, market, func(event types.TradeEvent) {
			trades <- event
		})
		if err != nil && ctx.Err() == nil {
			streamErrs <- err
		}
	}()

	m := model{
		marketID:     market,
		pairDecimals: marketMeta.PairDecimals,
		orders:       make(map[uint64]types.OrderbookEntry),
		entries:      entries,
		tradeEvents:  trades,
		streamErrors: streamErrs,
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("[Watch] TUI error: %v", err)
	}
}
