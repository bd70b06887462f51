package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mxstorebi/mxstorebi/internal/app"
	"github.com/mxstorebi/mxstorebi/internal/dailysales"
	"github.com/mxstorebi/mxstorebi/internal/platform/db"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/migrations"
)

type seedStore struct {
	id         string
	name       string
	thirdParty bool
}

var defaultStores = []seedStore{
	{"190", "Central WestGate", true},
	{"191", "Central Rama 2", false},
	{"76", "Lasalle 32 Alley", false},
	{"83", "Gateway at Bang Sue", true},
	{"91", "Terminal 21 Pattaya", true},
	{"92", "The Mall Life Store Ngamwongwan", false},
}

const demoDays = 3

func main() {
	demo := flag.Bool("demo", false, "generate archived sample reports for the last three days")
	cleanup := flag.Bool("cleanup", false, "remove duplicate archived reports, keeping the newest")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger, closeLog := app.NewLogger(cfg)
	defer func() { _ = closeLog() }()

	if err := run(context.Background(), cfg, logger, *demo, *cleanup); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger, demo, cleanup bool) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.Files, logger); err != nil {
		return err
	}

	logger.Info("seeding stores")
	if err := seedStores(ctx, pool); err != nil {
		return fmt.Errorf("seed stores: %w", err)
	}
	logger.Info("seeding admin user")
	if err := seedAdmin(ctx, pool); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if demo {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		n, err := seedDemoReports(ctx, pool, time.Now().In(loc))
		if err != nil {
			return fmt.Errorf("seed demo reports: %w", err)
		}
		logger.Info("demo reports seeded", slog.Int("inserted", n))
	}

	if cleanup {
		svc := dailysales.NewService(dailysales.NewRepository(pool), nil, nil, nil, nil, nil, logger, dailysales.Options{})
		n, err := svc.CleanupArchivedDuplicates(ctx)
		if err != nil {
			return err
		}
		logger.Info("duplicate cleanup finished", slog.Int("deleted", n))
	}

	logger.Info("seed complete", slog.String("at", time.Now().Format(time.RFC3339)))
	return nil
}

func seedStores(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, s := range defaultStores {
		batch.Queue(`
			INSERT INTO stores (store_id, store_name, third_party_platform)
			VALUES ($1, $2, $3)
			ON CONFLICT (store_id) DO UPDATE
			SET store_name = EXCLUDED.store_name, third_party_platform = EXCLUDED.third_party_platform`,
			s.id, s.name, s.thirdParty)
	}
	return pool.SendBatch(ctx, batch).Close()
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, status, role, real_name, profile_completed)
		VALUES ('admin', $1, 1, $2, 'Administrator', TRUE)
		ON CONFLICT (username) DO NOTHING`, string(hash), string(shared.RoleAdmin))
	return err
}

// demoFigures builds one fully reconciled report for a store and day.
func demoFigures(r *rand.Rand, thirdParty bool) map[string]decimal.Decimal {
	amount := func(lo, hi int) decimal.Decimal {
		return decimal.NewFromInt(int64(lo + r.IntN(hi-lo))).Round(2)
	}
	cash := amount(8000, 20000)
	electronic := amount(5000, 15000)
	voucher := amount(0, 500)
	takeaway := decimal.Zero
	if thirdParty {
		takeaway = amount(1000, 6000)
	}
	fee := amount(10, 40)
	return map[string]decimal.Decimal{
		"cash":       cash,
		"electronic": electronic,
		"voucher":    voucher,
		"takeaway":   takeaway,
		"deposit":    cash.Sub(fee),
		"fee":        fee,
	}
}

func seedDemoReports(ctx context.Context, pool *pgxpool.Pool, now time.Time) (int, error) {
	r := rand.New(rand.NewPCG(uint64(now.YearDay()), 42))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	batch := &pgx.Batch{}
	for _, s := range defaultStores {
		for d := 1; d <= demoDays; d++ {
			day := today.AddDate(0, 0, -d)
			f := demoFigures(r, s.thirdParty)
			batch.Queue(`
				INSERT INTO daily_sales (
					store_id, report_date, cash_sales, electronic_sales, system_takeaway_sales, voucher_amount,
					cash_difference, electronic_difference, takeaway_platform_sales, bank_deposit, bank_fee,
					verified_bank_amount, verified_voucher_amount, remark,
					pos_info_completed, takeaway_info_completed, bank_info_completed, is_submitted,
					financial_check_status, archived, submitted_at, archived_at
				)
				SELECT $1::varchar, $2::date, $3::numeric, $4::numeric, $5::numeric, $6::numeric, 0, 0, $5::numeric,
					$7::numeric, $8::numeric, $7::numeric, $6::numeric, 'demo data',
					TRUE, TRUE, TRUE, TRUE, 'CHECKED', TRUE, NOW(), NOW()
				WHERE NOT EXISTS (
					SELECT 1 FROM daily_sales WHERE store_id = $1::varchar AND report_date = $2::date AND archived
				)`,
				s.id, day, f["cash"], f["electronic"], f["takeaway"], f["voucher"], f["deposit"], f["fee"])
		}
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	inserted := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
