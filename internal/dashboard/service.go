package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
)

// loadConcurrency caps how many stores are aggregated at once.
const loadConcurrency = 4

// DayFigure is the actual sales of one archived day.
type DayFigure struct {
	Date        time.Time       `json:"date"`
	ActualSales decimal.Decimal `json:"actual_sales"`
}

// StoreSummary is the dashboard card of one store.
type StoreSummary struct {
	StoreID      string          `json:"store_id"`
	StoreName    string          `json:"store_name"`
	LastArchived *DayFigure      `json:"last_archived,omitempty"`
	MonthToDate  decimal.Decimal `json:"month_to_date"`
	MonthDays    int             `json:"month_days"`
	Pending      int             `json:"pending"`
}

// Summary is the whole dashboard.
type Summary struct {
	Month        string
	Stores       []StoreSummary
	MonthTotal   decimal.Decimal
	PendingTotal int
}

// RepositoryPort is the read model the dashboard needs.
type RepositoryPort interface {
	LastArchived(ctx context.Context, storeID string) (*DayFigure, error)
	ArchivedTotal(ctx context.Context, storeID string, from, to time.Time) (decimal.Decimal, int, error)
	PendingCount(ctx context.Context, storeID string) (int, error)
}

// StoreLister resolves the stores shown to an actor.
type StoreLister interface {
	List(ctx context.Context) ([]stores.Store, error)
	VisibleStores(ctx context.Context, p shared.Principal) ([]stores.Store, error)
}

type Service struct {
	repo     RepositoryPort
	stores   StoreLister
	cache    *Cache
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

func NewService(repo RepositoryPort, stores StoreLister, cache *Cache, logger *slog.Logger, loc *time.Location) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, stores: stores, cache: cache, logger: logger, location: loc, now: time.Now}
}

func (s *Service) today() time.Time {
	y, m, d := s.now().In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summary builds the dashboard for the stores visible to actor.
func (s *Service) Summary(ctx context.Context, actor shared.Principal) (Summary, error) {
	visible, err := s.stores.VisibleStores(ctx, actor)
	if err != nil {
		return Summary{}, fmt.Errorf("dashboard: visible stores: %w", err)
	}
	return s.build(ctx, visible)
}

// Warmup precomputes the summary of every store.
func (s *Service) Warmup(ctx context.Context) (int, error) {
	all, err := s.stores.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("dashboard: list stores: %w", err)
	}
	if _, err := s.build(ctx, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Service) build(ctx context.Context, list []stores.Store) (Summary, error) {
	today := s.today()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := Summary{Month: today.Format("January 2006"), Stores: make([]StoreSummary, len(list))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, st := range list {
		g.Go(func() error {
			key, err := s.cache.BuildKey(gctx, "dashboard", "store", st.ID, today.Format("2006-01-02"))
			if err != nil {
				return err
			}
			var sum StoreSummary
			err = s.cache.FetchJSON(gctx, key, &sum, func(ctx context.Context) (any, error) {
				return s.loadStore(ctx, st, monthStart, today)
			})
			if err != nil {
				return fmt.Errorf("dashboard: store %s: %w", st.ID, err)
			}
			sum.StoreName = st.Name
			out.Stores[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	for _, st := range out.Stores {
		out.MonthTotal = out.MonthTotal.Add(st.MonthToDate)
		out.PendingTotal += st.Pending
	}
	return out, nil
}

func (s *Service) loadStore(ctx context.Context, st stores.Store, from, to time.Time) (StoreSummary, error) {
	sum := StoreSummary{StoreID: st.ID, StoreName: st.Name}
	last, err := s.repo.LastArchived(ctx, st.ID)
	if err != nil {
		return sum, err
	}
	sum.LastArchived = last
	if sum.MonthToDate, sum.MonthDays, err = s.repo.ArchivedTotal(ctx, st.ID, from, to); err != nil {
		return sum, err
	}
	if sum.Pending, err = s.repo.PendingCount(ctx, st.ID); err != nil {
		return sum, err
	}
	return sum, nil
}
