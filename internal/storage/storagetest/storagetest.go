// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Run exercises open() against the storage contract. Each subtest gets a
// fresh store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("transactions round trip", func(t *testing.T) { testTransactionRoundTrip(t, open(t)) })
	t.Run("transaction listing", func(t *testing.T) { testTransactionListing(t, open(t)) })
	t.Run("user isolation", func(t *testing.T) { testUserIsolation(t, open(t)) })
	t.Run("category delete cascades", func(t *testing.T) { testCategoryDelete(t, open(t)) })
	t.Run("category listing", func(t *testing.T) { testCategoryListing(t, open(t)) })
	t.Run("budget upsert", func(t *testing.T) { testBudgetUpsert(t, open(t)) })
	t.Run("snapshots", func(t *testing.T) { testSnapshots(t, open(t)) })
	t.Run("active months", func(t *testing.T) { testActiveMonths(t, open(t)) })
	t.Run("ledger rounds amounts", func(t *testing.T) { testLedgerRoundsAmounts(t, open(t)) })
}

func category(user, name string, kind core.CategoryKind) core.Category {
	return core.Category{
		ID:        uuid.New(),
		UserID:    user,
		Name:      name,
		Color:     "#ef4444",
		Icon:      "utensils",
		Kind:      kind,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func transaction(user string, kind core.Kind, amount string, on core.Date, cat *core.Category, created time.Time) core.Transaction {
	tx := core.Transaction{
		ID:          uuid.New(),
		UserID:      user,
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		OccurredOn:  on,
		Description: "test",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if cat != nil {
		tx.Category = cat.Ref()
	}
	return tx
}

func testTransactionRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	food := category(alice, "食費", core.CategoryExpense)
	require.NoError(t, s.CreateCategory(ctx, food))

	tx := transaction(alice, core.KindExpense, "1500.50", core.NewDate(2024, 3, 15), &food, base)
	tx.Description = "スーパー"
	require.NoError(t, s.CreateTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, core.KindExpense, got.Kind)
	assert.True(t, tx.Amount.Equal(got.Amount), "amount %s != %s", tx.Amount, got.Amount)
	assert.Equal(t, "2024-03-15", got.OccurredOn.String())
	assert.Equal(t, "スーパー", got.Description)
	assert.True(t, base.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)
	require.NotNil(t, got.Category)
	assert.Equal(t, food.ID, got.Category.ID)
	assert.Equal(t, "食費", got.Category.Name)
	assert.Equal(t, "#ef4444", got.Category.Color)

	got.Amount = decimal.NewFromInt(2000)
	got.Category = nil
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateTransaction(ctx, got))

	updated, err := s.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2000).Equal(updated.Amount))
	assert.Nil(t, updated.Category)

	require.NoError(t, s.DeleteTransaction(ctx, alice, tx.ID))
	_, err = s.GetTransaction(ctx, alice, tx.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	assert.True(t, errors.Is(s.DeleteTransaction(ctx, alice, tx.ID), storage.ErrNotFound))
}

func testTransactionListing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	early := transaction(alice, core.KindIncome, "300000", core.NewDate(2024, 3, 1), nil, base)
	sameDayOld := transaction(alice, core.KindExpense, "500", core.NewDate(2024, 3, 10), nil, base)
	sameDayNew := transaction(alice, core.KindExpense, "700", core.NewDate(2024, 3, 10), nil, base.Add(time.Minute))
	april := transaction(alice, core.KindExpense, "100", core.NewDate(2024, 4, 1), nil, base)
	for _, tx := range []core.Transaction{early, sameDayOld, sameDayNew, april} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	march, err := s.ListTransactions(ctx, alice, storage.TransactionFilter{
		From: core.NewDate(2024, 3, 1),
		To:   core.NewDate(2024, 4, 1),
	})
	require.NoError(t, err)
	require.Len(t, march, 3)
	assert.Equal(t, sameDayNew.ID, march[0].ID)
	assert.Equal(t, sameDayOld.ID, march[1].ID)
	assert.Equal(t, early.ID, march[2].ID)

	expenses, err := s.ListTransactions(ctx, alice, storage.TransactionFilter{Kind: core.KindExpense})
	require.NoError(t, err)
	assert.Len(t, expenses, 3)

	limited, err := s.ListTransactions(ctx, alice, storage.TransactionFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, april.ID, limited[0].ID)
}

func testUserIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	cat := category(alice, "給与", core.CategoryIncome)
	require.NoError(t, s.CreateCategory(ctx, cat))
	tx := transaction(alice, core.KindIncome, "1000", core.NewDate(2024, 3, 5), &cat, base)
	require.NoError(t, s.CreateTransaction(ctx, tx))

	_, err := s.GetTransaction(ctx, bob, tx.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.GetCategory(ctx, bob, cat.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	stolen := tx
	stolen.UserID = bob
	assert.True(t, errors.Is(s.UpdateTransaction(ctx, stolen), storage.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteTransaction(ctx, bob, tx.ID), storage.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteCategory(ctx, bob, cat.ID), storage.ErrNotFound))

	list, err := s.ListTransactions(ctx, bob, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	cats, err := s.ListCategories(ctx, bob, nil)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func testCategoryDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	food := category(alice, "食費", core.CategoryExpense)
	require.NoError(t, s.CreateCategory(ctx, food))
	tx := transaction(alice, core.KindExpense, "800", core.NewDate(2024, 3, 2), &food, base)
	require.NoError(t, s.CreateTransaction(ctx, tx))
	_, err := s.UpsertBudget(ctx, core.Budget{
		ID: uuid.New(), UserID: alice, CategoryID: food.ID,
		Amount: decimal.NewFromInt(30000), Year: 2024, Month: 3,
		CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCategory(ctx, alice, food.ID))

	got, err := s.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err, "transactions survive their category")
	assert.Nil(t, got.Category)

	budgets, err := s.ListBudgets(ctx, alice, 2024, 3)
	require.NoError(t, err)
	assert.Empty(t, budgets)

	assert.True(t, errors.Is(s.DeleteCategory(ctx, alice, food.ID), storage.ErrNotFound))
}

func testCategoryListing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, c := range []core.Category{
		category(alice, "光熱費", core.CategoryExpense),
		category(alice, "Bonus", core.CategoryIncome),
		category(alice, "Allowance", core.CategoryIncome),
		category(alice, "Misc", core.CategoryBoth),
	} {
		require.NoError(t, s.CreateCategory(ctx, c))
	}

	all, err := s.ListCategories(ctx, alice, nil)
	require.NoError(t, err)
	var names []string
	for _, c := range all {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Misc", "光熱費", "Allowance", "Bonus"}, names)

	income := core.CategoryIncome
	only, err := s.ListCategories(ctx, alice, &income)
	require.NoError(t, err)
	assert.Len(t, only, 2)

	c := all[0]
	c.Name = "Other"
	c.Color = "#6b7280"
	c.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateCategory(ctx, c))
	got, err := s.GetCategory(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Other", got.Name)
	assert.Equal(t, "#6b7280", got.Color)
}

func testBudgetUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()
	food := category(alice, "食費", core.CategoryExpense)
	fun := category(alice, "娯楽", core.CategoryExpense)
	require.NoError(t, s.CreateCategory(ctx, food))
	require.NoError(t, s.CreateCategory(ctx, fun))

	first, err := s.UpsertBudget(ctx, core.Budget{
		ID: uuid.New(), UserID: alice, CategoryID: food.ID,
		Amount: decimal.NewFromInt(30000), Year: 2024, Month: 3,
		CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)

	second, err := s.UpsertBudget(ctx, core.Budget{
		ID: uuid.New(), UserID: alice, CategoryID: food.ID,
		Amount: decimal.NewFromInt(45000), Year: 2024, Month: 3,
		CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps the existing row")
	assert.True(t, decimal.NewFromInt(45000).Equal(second.Amount))

	_, err = s.UpsertBudget(ctx, core.Budget{
		ID: uuid.New(), UserID: alice, CategoryID: fun.ID,
		Amount: decimal.NewFromInt(10000), Year: 2024, Month: 3,
		CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)

	list, err := s.ListBudgets(ctx, alice, 2024, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)

	other, err := s.ListBudgets(ctx, alice, 2024, 4)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.DeleteBudget(ctx, alice, first.ID))
	assert.True(t, errors.Is(s.DeleteBudget(ctx, alice, first.ID), storage.ErrNotFound))
}

func testSnapshots(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.GetSnapshot(ctx, alice, 2024, 3)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	snap := core.MonthSnapshot{
		UserID: alice, Year: 2024, Month: 3,
		Summary: core.PeriodSummary{
			Income:  decimal.NewFromInt(300000),
			Expense: decimal.RequireFromString("1500.5"),
			Balance: decimal.RequireFromString("298499.5"),
			Count:   2,
		},
		ComputedAt: base,
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	snap.Summary.Count = 3
	snap.ComputedAt = base.Add(time.Hour)
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.GetSnapshot(ctx, alice, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Summary.Count)
	assert.True(t, snap.Summary.Balance.Equal(got.Summary.Balance))
	assert.True(t, snap.ComputedAt.Equal(got.ComputedAt))
}

func testActiveMonths(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		transaction(alice, core.KindExpense, "1", core.NewDate(2024, 1, 31), nil, base),
		transaction(alice, core.KindExpense, "1", core.NewDate(2024, 3, 1), nil, base),
		transaction(alice, core.KindExpense, "1", core.NewDate(2024, 3, 20), nil, base),
		transaction(bob, core.KindIncome, "1", core.NewDate(2024, 2, 2), nil, base),
	} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	months, err := s.ActiveMonths(ctx, core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []storage.UserMonth{
		{UserID: alice, Year: 2024, Month: 3},
		{UserID: bob, Year: 2024, Month: 2},
	}, months)
}

func testLedgerRoundsAmounts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	ledger := services.NewLedgerService(s, nil, nil, nil)

	tx, err := ledger.CreateTransaction(ctx, alice, services.TransactionInput{
		Kind:       core.KindExpense,
		Amount:     decimal.RequireFromString("12.345"),
		OccurredOn: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	got, err := s.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.35", got.Amount.String())

	_, err = ledger.UpdateTransaction(ctx, alice, tx.ID, services.TransactionInput{
		Kind:       core.KindExpense,
		Amount:     decimal.RequireFromString("0.004"),
		OccurredOn: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	got, err = s.GetTransaction(ctx, alice, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.IsZero(), "got %s", got.Amount)

	food, err := ledger.CreateCategory(ctx, alice, services.CategoryInput{Name: "食費", Kind: core.CategoryExpense})
	require.NoError(t, err)
	_, err = ledger.UpsertBudget(ctx, alice, services.BudgetInput{
		CategoryID: food.ID,
		Amount:     decimal.RequireFromString("30000.005"),
		Year:       2024,
		Month:      3,
	})
	require.NoError(t, err)
	budgets, err := s.ListBudgets(ctx, alice, 2024, 3)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "30000.01", budgets[0].Amount.String())
}
