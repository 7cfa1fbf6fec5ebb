package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/events"
	"kakeibo/internal/log"
	"kakeibo/internal/storage"
	"kakeibo/internal/storage/memory"
)

const alice = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

var fixedNow = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransactionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.TransactionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.TransactionEvent(nil), p.events...)
}

type fixture struct {
	store   *memory.Store
	pub     *recordingPublisher
	reports *ReportService
	ledger  *LedgerService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	reports := NewReportService(store, cache.NewLRUCache[any](100, time.Minute), log.Discard())
	ledger := NewLedgerService(store, pub, reports, log.Discard())
	ledger.now = func() time.Time { return fixedNow }
	return fixture{store: store, pub: pub, reports: reports, ledger: ledger}
}

func (f fixture) category(t *testing.T, name string, kind core.CategoryKind) core.Category {
	t.Helper()
	c, err := f.ledger.CreateCategory(context.Background(), alice, CategoryInput{Name: name, Kind: kind})
	require.NoError(t, err)
	return c
}

func (f fixture) expense(t *testing.T, amount string, date core.Date, cat *core.Category) core.Transaction {
	t.Helper()
	in := TransactionInput{Kind: core.KindExpense, Amount: decimal.RequireFromString(amount), OccurredOn: date}
	if cat != nil {
		in.CategoryID = &cat.ID
	}
	tx, err := f.ledger.CreateTransaction(context.Background(), alice, in)
	require.NoError(t, err)
	return tx
}

func TestLedger_CreateTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "食費", core.CategoryExpense)

	tx := f.expense(t, "1200", core.NewDate(2024, 3, 5), &food)

	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.Equal(t, alice, tx.UserID)
	assert.Equal(t, fixedNow, tx.CreatedAt)
	require.NotNil(t, tx.Category)
	assert.Equal(t, "食費", tx.Category.Name)

	stored, err := f.ledger.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(stored.Amount))

	evs := f.pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TransactionCreated, evs[0].Type)
	assert.Equal(t, tx.ID, evs[0].TransactionID)
	assert.Equal(t, 2024, evs[0].Year)
	assert.Equal(t, 3, evs[0].Month)
}

func TestLedger_CreateTransactionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	salary := f.category(t, "給与", core.CategoryIncome)
	missing := uuid.New()

	tests := []struct {
		name string
		in   TransactionInput
		want error
	}{
		{"negative amount", TransactionInput{Kind: core.KindExpense, Amount: decimal.NewFromInt(-1), OccurredOn: core.NewDate(2024, 3, 1)}, core.ErrNegativeAmount},
		{"unknown kind", TransactionInput{Kind: "transfer", Amount: decimal.NewFromInt(1), OccurredOn: core.NewDate(2024, 3, 1)}, core.ErrInvalidKind},
		{"kind mismatch", TransactionInput{Kind: core.KindExpense, Amount: decimal.NewFromInt(1), OccurredOn: core.NewDate(2024, 3, 1), CategoryID: &salary.ID}, ErrCategoryKindMismatch},
		{"unknown category", TransactionInput{Kind: core.KindExpense, Amount: decimal.NewFromInt(1), OccurredOn: core.NewDate(2024, 3, 1), CategoryID: &missing}, ErrUnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreateTransaction(ctx, alice, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	_, err := f.ledger.CreateTransaction(ctx, "", TransactionInput{Kind: core.KindIncome, OccurredOn: core.NewDate(2024, 3, 1)})
	assert.ErrorIs(t, err, core.ErrEmptyUserID)

	assert.Empty(t, f.pub.published(), "rejected writes publish nothing")
}

func TestLedger_BothCategoryAppliesToEitherKind(t *testing.T) {
	f := newFixture(t)
	gift := f.category(t, "プレゼント", core.CategoryBoth)

	for _, kind := range []core.Kind{core.KindIncome, core.KindExpense} {
		_, err := f.ledger.CreateTransaction(context.Background(), alice, TransactionInput{
			Kind: kind, Amount: decimal.NewFromInt(500), OccurredOn: core.NewDate(2024, 3, 2), CategoryID: &gift.ID,
		})
		assert.NoError(t, err, kind)
	}
}

func TestLedger_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	tx := f.expense(t, "10", core.NewDate(2024, 3, 1), nil)

	_, err := f.store.GetTransaction(context.Background(), alice, tx.ID)
	assert.NoError(t, err)
}

func TestLedger_UpdateAcrossMonthsPublishesBoth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.expense(t, "300", core.NewDate(2024, 2, 28), nil)

	updated, err := f.ledger.UpdateTransaction(ctx, alice, tx.ID, TransactionInput{
		Kind: core.KindExpense, Amount: decimal.NewFromInt(350), OccurredOn: core.NewDate(2024, 3, 1), Description: "  lunch ",
	})
	require.NoError(t, err)
	assert.Equal(t, "lunch", updated.Description)
	assert.Equal(t, tx.CreatedAt, updated.CreatedAt)

	evs := f.pub.published()
	require.Len(t, evs, 3)
	assert.Equal(t, events.TransactionUpdated, evs[1].Type)
	assert.Equal(t, 3, evs[1].Month)
	assert.Equal(t, 2, evs[2].Month)
}

func TestLedger_UpdateAndDeleteAreUserScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.expense(t, "300", core.NewDate(2024, 3, 1), nil)

	_, err := f.ledger.UpdateTransaction(ctx, "someone-else", tx.ID, TransactionInput{Kind: core.KindExpense, OccurredOn: core.NewDate(2024, 3, 1)})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.ledger.DeleteTransaction(ctx, "someone-else", tx.ID), storage.ErrNotFound)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, alice, tx.ID))
	evs := f.pub.published()
	assert.Equal(t, events.TransactionDeleted, evs[len(evs)-1].Type)

	_, err = f.ledger.GetTransaction(ctx, alice, tx.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedger_CategoryDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.category(t, "  雑費 ", core.CategoryExpense)
	assert.Equal(t, "雑費", c.Name)
	assert.Equal(t, core.DefaultCategoryColor, c.Color)
	assert.Equal(t, core.DefaultCategoryIcon, c.Icon)

	_, err := f.ledger.CreateCategory(ctx, alice, CategoryInput{Name: "x", Color: "red", Kind: core.CategoryExpense})
	assert.ErrorIs(t, err, core.ErrInvalidColor)

	_, err = f.ledger.CreateCategory(ctx, alice, CategoryInput{Name: " ", Kind: core.CategoryExpense})
	assert.ErrorIs(t, err, core.ErrEmptyName)

	updated, err := f.ledger.UpdateCategory(ctx, alice, c.ID, CategoryInput{Name: "日用品", Color: "#64748b", Kind: core.CategoryBoth})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryBoth, updated.Kind)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)

	bad := core.CategoryKind("savings")
	_, err = f.ledger.ListCategories(ctx, alice, &bad)
	assert.ErrorIs(t, err, core.ErrInvalidCategoryKind)
}

func TestLedger_DeleteCategoryDetachesTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "食費", core.CategoryExpense)
	tx := f.expense(t, "800", core.NewDate(2024, 3, 3), &food)
	_, err := f.ledger.UpsertBudget(ctx, alice, BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(30000), Year: 2024, Month: 3})
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteCategory(ctx, alice, food.ID))

	got, err := f.ledger.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err)
	assert.False(t, got.HasCategory())

	budgets, err := f.ledger.ListBudgets(ctx, alice, 2024, 3)
	require.NoError(t, err)
	assert.Empty(t, budgets)
}

func TestLedger_SeedDefaultCategoriesSkipsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.category(t, "食費", core.CategoryExpense)

	created, err := f.ledger.SeedDefaultCategories(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, created, len(DefaultCategories)-1)

	again, err := f.ledger.SeedDefaultCategories(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, again)

	income := core.CategoryIncome
	incomes, err := f.ledger.ListCategories(ctx, alice, &income)
	require.NoError(t, err)
	assert.Len(t, incomes, 7)
}

func TestLedger_UpsertBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "食費", core.CategoryExpense)
	salary := f.category(t, "給与", core.CategoryIncome)

	first, err := f.ledger.UpsertBudget(ctx, alice, BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(30000), Year: 2024, Month: 3})
	require.NoError(t, err)
	second, err := f.ledger.UpsertBudget(ctx, alice, BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(25000), Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, decimal.NewFromInt(25000).Equal(second.Amount))

	_, err = f.ledger.UpsertBudget(ctx, alice, BudgetInput{CategoryID: salary.ID, Amount: decimal.NewFromInt(1), Year: 2024, Month: 3})
	assert.ErrorIs(t, err, ErrCategoryKindMismatch)

	_, err = f.ledger.UpsertBudget(ctx, alice, BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(1), Year: 2024, Month: 13})
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	_, err = f.ledger.ListBudgets(ctx, alice, 2024, 0)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestReports_CachedUntilLedgerWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expense(t, "1000", core.NewDate(2024, 3, 1), nil)

	s, err := f.reports.Summary(ctx, alice, "month", 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "1000", s.Expense.String())

	// A write behind the service's back is not seen while cached.
	require.NoError(t, f.store.CreateTransaction(ctx, core.Transaction{
		ID: uuid.New(), UserID: alice, Kind: core.KindExpense, Amount: decimal.NewFromInt(5), OccurredOn: core.NewDate(2024, 3, 2),
	}))
	s, err = f.reports.Summary(ctx, alice, "month", 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "1000", s.Expense.String())

	f.expense(t, "200", core.NewDate(2024, 3, 3), nil)
	s, err = f.reports.Summary(ctx, alice, "month", 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "1205", s.Expense.String())
	assert.Equal(t, 3, s.Count)
}

// blockingStore parks the first ListTransactions after it has read, until
// release is closed.
type blockingStore struct {
	storage.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.Store.ListTransactions(ctx, userID, f)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return txs, err
}

func TestReports_LoadOverlappingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	reports := NewReportService(store, cache.NewLRUCache[any](100, time.Minute), log.Discard())
	ledger := NewLedgerService(store, nil, reports, log.Discard())

	done := make(chan core.PeriodSummary, 1)
	go func() {
		s, err := reports.Summary(ctx, alice, "month", 2024, 2)
		assert.NoError(t, err)
		done <- s
	}()

	<-store.entered
	_, err := ledger.CreateTransaction(ctx, alice, TransactionInput{
		Kind: core.KindExpense, Amount: decimal.NewFromInt(500), OccurredOn: core.NewDate(2024, 2, 10),
	})
	close(store.release)
	require.NoError(t, err)
	assert.Equal(t, 0, (<-done).Count, "the overlapping load read before the write")

	s, err := reports.Summary(ctx, alice, "month", 2024, 2)
	require.NoError(t, err)
	assert.Equal(t, "500", s.Expense.String())
	assert.Equal(t, 1, s.Count)
}

func TestReports_Views(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "食費", core.CategoryExpense)
	f.expense(t, "600", core.NewDate(2024, 3, 1), &food)
	f.expense(t, "400", core.NewDate(2024, 3, 15), nil)
	f.expense(t, "999", core.NewDate(2024, 4, 1), &food)
	_, err := f.ledger.UpsertBudget(ctx, alice, BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(500), Year: 2024, Month: 3})
	require.NoError(t, err)

	daily, err := f.reports.Daily(ctx, alice, 2024, 3)
	require.NoError(t, err)
	assert.Len(t, daily, 31)
	assert.Equal(t, "600", daily[0].Expense.String())

	cats, err := f.reports.Categories(ctx, alice, core.KindExpense, "month", 2024, 3)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "食費", cats[0].Label)
	assert.Equal(t, "60", cats[0].Share.String())

	_, err = f.reports.Categories(ctx, alice, "transfer", "month", 2024, 3)
	assert.ErrorIs(t, err, core.ErrInvalidKind)

	top, err := f.reports.Top(ctx, alice, 1, "quarter", 2024, 3)
	require.NoError(t, err)
	assert.Len(t, top.Expense, 1)
	assert.Empty(t, top.Income)

	_, err = f.reports.Top(ctx, alice, 0, "month", 2024, 3)
	assert.Error(t, err)

	cmp, err := f.reports.Comparison(ctx, alice, "year", 2024, 1)
	require.NoError(t, err)
	assert.Len(t, cmp, 2)

	progress, err := f.reports.Budgets(ctx, alice, 2024, 3)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.True(t, progress[0].Over)
	assert.Equal(t, "600", progress[0].Spent.String())
}

func TestReports_Dashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expense(t, "100", core.NewDate(2024, 2, 10), nil)
	for i := 1; i <= 12; i++ {
		f.expense(t, "50", core.NewDate(2024, 3, i), nil)
	}

	d, err := f.reports.Dashboard(ctx, alice, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "600", d.Summary.Expense.String())
	assert.Equal(t, "100", d.Previous.Expense.String())
	assert.Equal(t, "up", d.Trend.Direction)
	assert.Len(t, d.Recent, RecentTransactions)
	assert.Equal(t, 12, d.Recent[0].OccurredOn.Day())

	_, err = f.reports.Dashboard(ctx, alice, 2024, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestReports_EmptyUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.reports.Summary(context.Background(), "", "month", 2024, 3)
	assert.ErrorIs(t, err, core.ErrEmptyUserID)
}
