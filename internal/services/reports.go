package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/report"
	"kakeibo/internal/storage"
)

// RecentTransactions is how many transactions the dashboard lists.
const RecentTransactions = 10

// Dashboard is the landing view of one month.
type Dashboard struct {
	Year     int                `json:"year"`
	Month    int                `json:"month"`
	Summary  core.PeriodSummary `json:"summary"`
	Previous core.PeriodSummary `json:"previous"`
	Trend    core.Trend         `json:"trend"`
	Recent   []core.Transaction `json:"recent"`
}

// ReportService loads a period's transactions and runs the report
// functions over them. Results are cached per user and view until a ledger
// write for that user invalidates them.
type ReportService struct {
	store  storage.Store
	cache  cache.Cache[any]
	logger *log.Logger

	// generations counts invalidations per user. A load only caches its
	// result when no invalidation happened while it ran.
	mu          sync.Mutex
	generations map[string]uint64
}

var _ Invalidator = (*ReportService)(nil)

// NewReportService wires a report service. A nil cache disables caching.
func NewReportService(store storage.Store, c cache.Cache[any], logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		store:       store,
		cache:       c,
		logger:      logger.WithComponent(log.ComponentReport),
		generations: make(map[string]uint64),
	}
}

// Invalidate drops every cached view of userID.
func (s *ReportService) Invalidate(userID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	if n := s.cache.DeletePrefix(userID + "|"); n > 0 {
		s.logger.Debug("Report cache invalidated", log.FieldUserID, userID, "entries", n)
	}
}

// cached returns the value stored under key or computes and stores it.
// A value computed while userID was invalidated is returned but not stored.
func cached[T any](s *ReportService, userID, key string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	if v, ok := s.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	gen := s.generation(userID)
	v, err := load()
	if err != nil {
		return v, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] == gen {
		s.cache.Set(key, v)
	}
	return v, nil
}

func (s *ReportService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func cacheKey(userID, view string, p report.Period, year, month int, extra ...string) string {
	parts := append([]string{userID, view, string(p), fmt.Sprintf("%04d-%02d", year, month)}, extra...)
	return strings.Join(parts, "|")
}

// load returns userID's transactions of the period around year/month.
func (s *ReportService) load(ctx context.Context, userID string, p report.Period, year, month int) ([]core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	from, to, err := report.Range(p, year, month)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, userID, storage.TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *ReportService) Summary(ctx context.Context, userID string, p report.Period, year, month int) (core.PeriodSummary, error) {
	return cached(s, userID, cacheKey(userID, "summary", p, year, month), func() (core.PeriodSummary, error) {
		txs, err := s.load(ctx, userID, p, year, month)
		if err != nil {
			return core.PeriodSummary{}, err
		}
		return report.PeriodSummary(txs)
	})
}

func (s *ReportService) Daily(ctx context.Context, userID string, year, month int) ([]core.DayTotal, error) {
	return cached(s, userID, cacheKey(userID, "daily", report.PeriodMonth, year, month), func() ([]core.DayTotal, error) {
		txs, err := s.load(ctx, userID, report.PeriodMonth, year, month)
		if err != nil {
			return nil, err
		}
		return report.DailySeries(txs, year, month)
	})
}

func (s *ReportService) Categories(ctx context.Context, userID string, kind core.Kind, p report.Period, year, month int) ([]core.CategoryTotal, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return cached(s, userID, cacheKey(userID, "categories", p, year, month, string(kind)), func() ([]core.CategoryTotal, error) {
		txs, err := s.load(ctx, userID, p, year, month)
		if err != nil {
			return nil, err
		}
		return report.CategoryBreakdown(txs, kind)
	})
}

func (s *ReportService) Top(ctx context.Context, userID string, n int, p report.Period, year, month int) (core.TopCategories, error) {
	if n < 1 {
		return core.TopCategories{}, report.ErrInvalidTopN
	}
	return cached(s, userID, cacheKey(userID, "top", p, year, month, fmt.Sprint(n)), func() (core.TopCategories, error) {
		txs, err := s.load(ctx, userID, p, year, month)
		if err != nil {
			return core.TopCategories{}, err
		}
		return report.TopCategories(txs, n)
	})
}

func (s *ReportService) Comparison(ctx context.Context, userID string, p report.Period, year, month int) ([]core.CategoryComparison, error) {
	return cached(s, userID, cacheKey(userID, "comparison", p, year, month), func() ([]core.CategoryComparison, error) {
		txs, err := s.load(ctx, userID, p, year, month)
		if err != nil {
			return nil, err
		}
		return report.Compare(txs)
	})
}

// Budgets reports how much of each budget of the month has been spent.
func (s *ReportService) Budgets(ctx context.Context, userID string, year, month int) ([]core.BudgetProgress, error) {
	return cached(s, userID, cacheKey(userID, "budgets", report.PeriodMonth, year, month), func() ([]core.BudgetProgress, error) {
		g, gctx := errgroup.WithContext(ctx)

		var (
			budgets    []core.Budget
			categories []core.Category
			txs        []core.Transaction
		)
		g.Go(func() (err error) {
			budgets, err = s.store.ListBudgets(gctx, userID, year, month)
			return err
		})
		g.Go(func() (err error) {
			categories, err = s.store.ListCategories(gctx, userID, nil)
			return err
		})
		g.Go(func() (err error) {
			txs, err = s.load(gctx, userID, report.PeriodMonth, year, month)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return report.BudgetProgress(budgets, categories, txs)
	})
}

// Dashboard loads the month, the previous month and the latest transactions
// concurrently.
func (s *ReportService) Dashboard(ctx context.Context, userID string, year, month int) (Dashboard, error) {
	if err := core.ValidatePeriod(year, month); err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Year: year, Month: month}
	py, pm := report.PreviousMonth(year, month)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Summary, err = s.Summary(gctx, userID, report.PeriodMonth, year, month)
		return err
	})
	g.Go(func() (err error) {
		d.Previous, err = s.Summary(gctx, userID, report.PeriodMonth, py, pm)
		return err
	})
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, userID, storage.TransactionFilter{Limit: RecentTransactions})
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		d.Recent = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.Trend = report.Trend(d.Summary, d.Previous)
	if d.Recent == nil {
		d.Recent = []core.Transaction{}
	}
	return d, nil
}
