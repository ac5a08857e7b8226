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

	"github.com/quantfold/flowsentry/internal/config"
	"github.com/quantfold/flowsentry/internal/dedup"
	"github.com/quantfold/flowsentry/internal/engine"
	"github.com/quantfold/flowsentry/internal/logger"
	"github.com/quantfold/flowsentry/internal/models"
	"github.com/quantfold/flowsentry/internal/notify"
	"github.com/quantfold/flowsentry/internal/schedule"
	"github.com/quantfold/flowsentry/internal/sheets"
	"github.com/quantfold/flowsentry/internal/store"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single cycle and exit")
	dryRun     = flag.Bool("dry-run", false, "Compute and dedup alerts without sending")
	refresh    = flag.Bool("refresh", false, "Force a history reload and exit")
	query      = flag.Bool("query", false, "Print stored records matching the filter flags and exit")
	netflow    = flag.String("netflow", "", "Print net flow for a ticker, by expiry and by source, and exit")
	stats      = flag.Bool("stats", false, "Print store statistics and exit")

	queryTicker    = flag.String("ticker", "", "Query filter: ticker symbol")
	querySource    = flag.String("source", "", "Query filter: source name")
	querySide      = flag.String("side", "", "Query filter: BUYING or SELLING")
	queryDays      = flag.Int("days", 0, "Query filter: only orders from the past N days")
	queryMinDollar = flag.Float64("min-dollar", 0, "Query filter: minimum total dollar flow")
	queryMinQty    = flag.Float64("min-qty", 0, "Query filter: minimum total contract quantity")
)

func main() {
	flag.Parse()

	// Secrets live in .env during local runs; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.FilePath)
	logger.Info("Configuration loaded from %s", *configPath)

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}()

	if *query {
		runQuery(st)
		return
	}
	if *netflow != "" {
		runNetFlow(st, strings.ToUpper(*netflow))
		return
	}
	if *stats {
		runStats(st)
		return
	}

	sheetsClient := sheets.NewClient(cfg.Sheets.APIKey, cfg.Sheets.Timeout)

	var notifier engine.Notifier
	var telegramClient *notify.Client
	if cfg.Telegram.Enabled && !*dryRun {
		telegramClient, err = notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized for %d chat(s)", len(cfg.Telegram.ChatIDs))
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	eng := engine.New(cfg, sheetsClient, st, dedup.New(st), notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *refresh {
		if err := eng.RefreshHistory(ctx, true); err != nil {
			logger.Fatal("History refresh failed: %v", err)
		}
		logger.Info("History refresh complete")
		return
	}

	if *once {
		if err := eng.RunCycle(ctx, *dryRun); err != nil {
			logger.Fatal("Cycle failed: %v", err)
		}
		return
	}

	runLoop(ctx, cfg, eng, telegramClient)
}

// runLoop polls on the configured interval, gated to market hours when
// enabled. The first cycle after a cold start seeds the dedup state without
// sending, so a restart does not replay the whole sheet as alerts.
func runLoop(ctx context.Context, cfg *config.Config, eng *engine.Engine, telegramClient *notify.Client) {
	var market *schedule.Market
	if cfg.Schedule.MarketHoursOnly {
		var err error
		market, err = schedule.New(cfg.Schedule.Timezone)
		if err != nil {
			logger.Fatal("Invalid schedule timezone: %v", err)
		}
	}

	logger.Info("Starting flow monitoring (interval: %v, dollar threshold: %.0f, qty threshold: %.0f)",
		cfg.Sheets.PollInterval,
		cfg.Alerts.DollarThreshold,
		cfg.Alerts.QtyThreshold,
	)

	ticker := time.NewTicker(cfg.Sheets.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Monitoring cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	firstCycle := true
	runIfOpen := func() {
		if market != nil && !market.IsOpen(time.Now()) {
			logger.Debug("Market closed, next open %v", market.NextOpen(time.Now()))
			return
		}
		if firstCycle {
			logger.Info("First cycle: seeding dedup state without sending")
		}
		handleCycleResult(eng.RunCycle(ctx, firstCycle || *dryRun))
		firstCycle = false
	}

	runIfOpen()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			runIfOpen()
		}
	}
}

func runQuery(st *store.Store) {
	records, err := st.QueryRecords(store.RecordFilter{
		Ticker:    *queryTicker,
		Source:    *querySource,
		Side:      models.Side(*querySide),
		Days:      *queryDays,
		MinDollar: *queryMinDollar,
		MinQty:    *queryMinQty,
	})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	for _, r := range records {
		fmt.Printf("%-10s %-8s %-20s calls %12s (%8s)  puts %12s (%8s)  %s\n",
			r.Source, r.Side, r.Label(),
			notify.FormatDollar(r.CallDollar), notify.FormatQty(r.CallQty),
			notify.FormatDollar(r.PutDollar), notify.FormatQty(r.PutQty),
			r.Direction)
	}
	fmt.Printf("%d record(s)\n", len(records))
}

func runNetFlow(st *store.Store, ticker string) {
	nf, err := st.QueryNetFlow(ticker, *querySource)
	if err != nil {
		log.Fatalf("Net flow query failed: %v", err)
	}
	fmt.Printf("%s: %s\n", ticker, nf.Direction)
	fmt.Printf("  bullish %s (%s qty, %d orders)  bearish %s (%s qty, %d orders)\n",
		notify.FormatDollar(nf.BullishDollar), notify.FormatQty(nf.BullishQty), nf.BullishCount,
		notify.FormatDollar(nf.BearishDollar), notify.FormatQty(nf.BearishQty), nf.BearishCount)

	byExpiry, err := st.QueryNetFlowByExpiry(ticker)
	if err != nil {
		log.Fatalf("Net flow by expiry failed: %v", err)
	}
	if len(byExpiry) > 0 {
		fmt.Println("by expiry:")
		for _, ef := range byExpiry {
			fmt.Printf("  %-10s %-8s bullish %s  bearish %s\n",
				ef.Label, ef.Direction, notify.FormatDollar(ef.BullishDollar), notify.FormatDollar(ef.BearishDollar))
		}
	}

	bySource, err := st.QueryNetFlowBySource(ticker)
	if err != nil {
		log.Fatalf("Net flow by source failed: %v", err)
	}
	if len(bySource) > 0 {
		fmt.Println("by source:")
		for _, sf := range bySource {
			fmt.Printf("  %-10s %-8s bullish %s  bearish %s\n",
				sf.Source, sf.Direction, notify.FormatDollar(sf.BullishDollar), notify.FormatDollar(sf.BearishDollar))
		}
	}
}

func runStats(st *store.Store) {
	s, err := st.QueryStats()
	if err != nil {
		log.Fatalf("Stats failed: %v", err)
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode stats: %v", err)
	}
	fmt.Println(string(out))
}
