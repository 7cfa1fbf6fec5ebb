package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"kakeibo/internal/core"
)

// ErrNotFound is returned when a record does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// TransactionFilter narrows ListTransactions. Zero values mean no constraint.
// From is inclusive and To exclusive.
type TransactionFilter struct {
	From  core.Date
	To    core.Date
	Kind  core.Kind
	Limit int
}

// UserMonth identifies one user's calendar month.
type UserMonth struct {
	UserID string
	Year   int
	Month  int
}

// TransactionStore persists transactions. Listings are ordered by date then
// creation time, newest first, with the category reference joined in.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error
	GetTransaction(ctx context.Context, userID string, id uuid.UUID) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)
	// ActiveMonths lists every user month holding at least one transaction
	// dated on or after since.
	ActiveMonths(ctx context.Context, since core.Date) ([]UserMonth, error)
}

// CategoryStore persists categories. Deleting a category detaches it from
// its transactions and removes its budgets.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) error
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, userID string, id uuid.UUID) error
	GetCategory(ctx context.Context, userID string, id uuid.UUID) (core.Category, error)
	// ListCategories returns the user's categories ordered by kind then
	// name. A non-nil kind keeps only categories of exactly that kind.
	ListCategories(ctx context.Context, userID string, kind *core.CategoryKind) ([]core.Category, error)
}

// BudgetStore persists monthly budgets.
type BudgetStore interface {
	// UpsertBudget inserts b, or updates the amount of the budget already
	// set for the same user, category, year and month. It returns the
	// stored row.
	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID string, id uuid.UUID) error
	ListBudgets(ctx context.Context, userID string, year, month int) ([]core.Budget, error)
}

// SnapshotStore persists computed month snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s core.MonthSnapshot) error
	GetSnapshot(ctx context.Context, userID string, year, month int) (core.MonthSnapshot, error)
}

// Store is the full data access surface used by the services.
type Store interface {
	TransactionStore
	CategoryStore
	BudgetStore
	SnapshotStore
	Ping(ctx context.Context) error
	Close() error
}

// MonthsOf reduces dated rows to the distinct user months they fall in,
// keeping first-seen order.
func MonthsOf(userIDs []string, dates []core.Date) []UserMonth {
	seen := make(map[UserMonth]bool, len(dates))
	var out []UserMonth
	for i, d := range dates {
		um := UserMonth{UserID: userIDs[i], Year: d.Year(), Month: d.Month()}
		if !seen[um] {
			seen[um] = true
			out = append(out, um)
		}
	}
	return out
}
