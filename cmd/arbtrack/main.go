package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"arbtrack/internal/arbitrage"
	"arbtrack/internal/config"
	"arbtrack/internal/database"
	"arbtrack/internal/fees"
	"arbtrack/internal/ingest"
	"arbtrack/internal/model"
	"arbtrack/internal/publish"
	"arbtrack/internal/sink"
	"arbtrack/internal/store"
	"arbtrack/internal/tracker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	schedule := buildSchedule(cfg)
	calc := fees.NewCalculator(schedule, logger)
	scanner := arbitrage.NewScanner(calc, arbitrage.Config{
		TradeAmount:        decimal.NewFromFloat(cfg.Arbitrage.TradeAmount),
		WithdrawalCurrency: cfg.Arbitrage.WithdrawalCurrency,
		WithdrawalMethod:   cfg.Arbitrage.WithdrawalMethod,
		MaxPriceAge:        cfg.Arbitrage.MaxPriceAge(),
	}, logger)

	prices := store.NewPriceStore()
	rates := store.NewRateStore(cfg.Currencies)
	publisher := publish.NewPublisher(logger)

	t := tracker.New(prices, rates, scanner, publisher,
		&ingest.WebsocketDialer{}, cfg.Arbitrage.ScanInterval(), logger)

	if p, ok := cfg.Providers["coinapi"]; ok && p.APIKey != "" {
		t.RegisterStrategy("coinapi", ingest.NewCoinAPIStrategy(p.APIKey))
	}
	if p, ok := cfg.Providers["xchangeapi"]; ok && p.APIKey != "" {
		t.RegisterStrategy("xchangeapi", ingest.NewXChangeStrategy(p.APIKey))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CSVDir != "" {
		csvSink, err := sink.NewCSVSink(cfg.CSVDir, logger)
		if err != nil {
			log.Fatalf("cannot open csv sink: %v", err)
		}
		defer csvSink.Close()
		t.OnPriceObserved(csvSink.Observe)
	}

	if cfg.Database.Host != "" {
		repo, err := connectDatabase(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("cannot connect to database: %v", err)
		}
		defer repo.Pool.Close()
		t.OnPriceObserved(func(key model.PriceKey, point model.PricePoint) {
			if err := repo.LogObservation(ctx, key, point); err != nil {
				logger.Warn("failed to log observation", "error", err)
			}
		})
		t.OnOpportunity(func(event string, payload any) {
			result, ok := payload.(model.ScanResult)
			if !ok || event != tracker.EventArbitrageUpdate || result.Best == nil {
				return
			}
			if err := repo.LogOpportunity(ctx, *result.Best); err != nil {
				logger.Warn("failed to log opportunity", "error", err)
			}
		})
	}

	if cfg.Redis.Addr != "" {
		redisPub := publish.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Channel, logger)
		defer redisPub.Close()
		t.OnOpportunity(redisPub.Callback)
	}

	logger.Info("starting price tracker", "currencies", cfg.Currencies)
	t.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")
	t.Stop()
}

// buildSchedule layers config trading-fee overrides on the built-in schedule.
func buildSchedule(cfg config.Config) *fees.Schedule {
	if len(cfg.Exchanges) == 0 {
		return fees.DefaultSchedule()
	}

	entries := make(map[string]fees.ExchangeFees)
	defaults := fees.DefaultSchedule()
	for _, name := range defaults.Exchanges() {
		buy, _ := defaults.TradingFee(name, fees.Buy)
		sell, _ := defaults.TradingFee(name, fees.Sell)
		payment, _ := defaults.PaymentFee(name)
		entry := fees.ExchangeFees{
			TradingFeeBuy:  buy,
			TradingFeeSell: sell,
			PaymentFee:     payment,
			Withdrawal:     defaults.WithdrawalTable(name),
		}
		if override, ok := cfg.Exchanges[name]; ok {
			entry.TradingFeeBuy = decimal.NewFromFloat(override.TradingFeeBuy)
			entry.TradingFeeSell = decimal.NewFromFloat(override.TradingFeeSell)
			entry.PaymentFee = decimal.NewFromFloat(override.PaymentFee)
		}
		entries[name] = entry
	}
	return fees.NewSchedule(entries)
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.PostgresRepository, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	repo := &database.PostgresRepository{Pool: pool}
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}
