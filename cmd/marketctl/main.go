package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/pkg/sdk/api"
)

const usage = `marketctl <command> [flags]

Commands:
  create   -market N -authority A -collateral usdc -deadline UNIX [-url U]
  faucet   -user U -asset A -amount N
  balance  -user U -asset A
  split    -market N -user U -amount N
  merge    -market N -user U
  settle   -market N -caller A -outcome yes|no|neither
  claim    -market N -user U
  order    -market N -user U -side buy|sell -token yes|no -qty N -price P [-counterparties a,b]
  cancel   -market N -user U -order ID
  book     -market N
  stats    -market N -user U
  trades   -market N [-limit N]
  watch    -market N        (stream live trades until Ctrl+C)
  markets
`

func main() {
	_ = godotenv.Load()

	host := os.Getenv("GOCLOB_API_URL")
	if host == "" {
		host = "http://127.0.0.1:8080"
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	var (
		market         = fs.Uint("market", 0, "market id")
		user           = fs.String("user", "", "user identity")
		caller         = fs.String("caller", "", "caller identity")
		authority      = fs.String("authority", "", "market authority")
		collateralOpt  = fs.String("collateral", "usdc", "collateral asset")
		deadline       = fs.Int64("deadline", 0, "settlement deadline (unix seconds)")
		metaURL        = fs.String("url", "", "metadata url")
		asset          = fs.String("asset", "usdc", "asset id")
		amount         = fs.Uint64("amount", 0, "amount")
		side           = fs.String("side", "", "buy|sell")
		token          = fs.String("token", "", "yes|no")
		qty            = fs.Uint64("qty", 0, "order quantity")
		price          = fs.Uint64("price", 0, "order limit price")
		orderID        = fs.Uint64("order", 0, "order id")
		outcome        = fs.String("outcome", "", "yes|no|neither")
		limit          = fs.Int("limit", 50, "max rows")
		counterparties = fs.String("counterparties", "", "comma-separated counterparty users")
	)
	_ = fs.Parse(os.Args[2:])

	client := api.NewClient(host)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "create":
		m, err := client.CreateMarket(ctx, uint32(*market), *authority, *collateralOpt, *deadline, *metaURL)
		exitOn(err)
		dump(m)
	case "faucet":
		exitOn(client.Faucet(ctx, *user, *asset, *amount))
		fmt.Println("ok")
	case "balance":
		bal, err := client.Balance(ctx, *user, *asset)
		exitOn(err)
		fmt.Println(bal)
	case "split":
		exitOn(client.Split(ctx, uint32(*market), *user, *amount))
		fmt.Println("ok")
	case "merge":
		merged, err := client.Merge(ctx, uint32(*market), *user)
		exitOn(err)
		fmt.Printf("merged %d\n", merged)
	case "settle":
		exitOn(client.Settle(ctx, uint32(*market), *caller, *outcome))
		fmt.Println("ok")
	case "claim":
		paid, err := client.Claim(ctx, uint32(*market), *user)
		exitOn(err)
		fmt.Printf("paid %d\n", paid)
	case "order":
		var cps []string
		for _, cp := range strings.Split(*counterparties, ",") {
			if cp = strings.TrimSpace(cp); cp != "" {
				cps = append(cps, cp)
			}
		}
		res, err := client.PlaceOrder(ctx, uint32(*market), api.PlaceOrderRequest{
			User: *user, Side: *side, TokenType: *token,
			Quantity: *qty, Price: *price, Counterparties: cps,
		})
		exitOn(err)
		dump(res)
	case "cancel":
		refunded, err := client.CancelOrder(ctx, uint32(*market), *user, *orderID)
		exitOn(err)
		fmt.Printf("refunded %d\n", refunded)
	case "book":
		book, err := client.GetBook(ctx, uint32(*market))
		exitOn(err)
		dump(book)
	case "stats":
		stats, err := client.GetStats(ctx, uint32(*market), *user)
		exitOn(err)
		dump(stats)
	case "trades":
		trades, err := client.ListTrades(ctx, uint32(*market), *limit)
		exitOn(err)
		dump(trades)
	case "markets":
		markets, err := client.ListMarkets(ctx)
		exitOn(err)
		dump(markets)
	case "watch":
		watch(client, uint32(*market))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func watch(client *api.Client, marketID uint32) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stopCh
		cancel()
	}()

	stream, err := client.StreamEvents(ctx, marketID)
	exitOn(err)
	defer stream.Close()

	log.Printf("watching market %d...", marketID)
	for ev := range stream.Events() {
		switch ev.Kind {
		case events.KindTradeExecuted:
			tr := ev.Trade
			fmt.Printf("%s trade %s %s %d@%d taker=%s maker=%s\n",
				tr.Timestamp.Format(time.RFC3339), tr.TakerSide, tr.TokenType,
				tr.Quantity, tr.Price, tr.Taker, tr.Maker)
		case events.KindOrderPlaced:
			o := ev.Order.Order
			fmt.Printf("%s rest  %s %s %d@%d user=%s order=%d\n",
				ev.Order.Timestamp.Format(time.RFC3339), o.Side, o.TokenType,
				o.Remaining(), o.Price, o.User, o.ID)
		case events.KindOrderCanceled:
			o := ev.Cancel.Order
			fmt.Printf("%s cancel order=%d user=%s refunded=%d\n",
				ev.Cancel.Timestamp.Format(time.RFC3339), o.ID, o.User, ev.Cancel.RefundedAmount)
		case events.KindMarketSettled:
			fmt.Printf("%s settled outcome=%s\n",
				ev.Settled.Timestamp.Format(time.RFC3339), ev.Settled.Outcome)
		}
	}
}

func dump(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	exitOn(err)
	fmt.Println(string(raw))
}

func exitOn(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
