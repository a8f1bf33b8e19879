package database

import (
	"context"

	"arbtrack/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the write-only persistence surface. The core never reads
// anything back; history analysis happens offline.
type Repository interface {
	LogObservation(ctx context.Context, key model.PriceKey, point model.PricePoint) error
	LogOpportunity(ctx context.Context, opp model.ArbitrageOpportunity) error
}

// PostgresRepository implements Repository over a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// Migrate creates the observation and opportunity tables if missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS price_observations (
		id SERIAL PRIMARY KEY,
		observed_at TIMESTAMPTZ NOT NULL,
		cryptocurrency VARCHAR(10) NOT NULL,
		exchange VARCHAR(50) NOT NULL,
		fiat VARCHAR(10) NOT NULL,
		price NUMERIC(20, 8) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
		id SERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cryptocurrency VARCHAR(10) NOT NULL,
		buy_exchange VARCHAR(50) NOT NULL,
		buy_fiat VARCHAR(10) NOT NULL,
		buy_price_usd NUMERIC(20, 8) NOT NULL,
		sell_exchange VARCHAR(50) NOT NULL,
		sell_fiat VARCHAR(10) NOT NULL,
		sell_price_usd NUMERIC(20, 8) NOT NULL,
		spread_pct NUMERIC(20, 8) NOT NULL,
		total_fees_usd NUMERIC(20, 8) NOT NULL,
		net_profit_usd NUMERIC(20, 8) NOT NULL
	);`)
	return err
}

// LogObservation appends one accepted price write.
func (r *PostgresRepository) LogObservation(ctx context.Context, key model.PriceKey, point model.PricePoint) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO price_observations (observed_at, cryptocurrency, exchange, fiat, price)
		 VALUES ($1, $2, $3, $4, $5)`,
		point.ObservedAt, key.Crypto, key.Exchange, key.Fiat, point.Price)
	return err
}

// LogOpportunity appends one detected opportunity.
func (r *PostgresRepository) LogOpportunity(ctx context.Context, opp model.ArbitrageOpportunity) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO arbitrage_opportunities (
			cryptocurrency, buy_exchange, buy_fiat, buy_price_usd,
			sell_exchange, sell_fiat, sell_price_usd,
			spread_pct, total_fees_usd, net_profit_usd)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		opp.Crypto, opp.BuyExchange, opp.BuyFiat, opp.BuyPriceUSD,
		opp.SellExchange, opp.SellFiat, opp.SellPriceUSD,
		opp.SpreadPct, opp.TotalFeesUSD, opp.NetProfitUSD)
	return err
}
