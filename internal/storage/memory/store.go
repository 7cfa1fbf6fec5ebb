// Package memory is an in-process Store used for development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

type snapshotKey struct {
	userID      string
	year, month int
}

type budgetKey struct {
	userID      string
	categoryID  uuid.UUID
	year, month int
}

// Store keeps everything in maps guarded by one RWMutex. Values are copied
// in and out so callers never share state with the store.
type Store struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]core.Transaction
	categories   map[uuid.UUID]core.Category
	budgets      map[uuid.UUID]core.Budget
	budgetIndex  map[budgetKey]uuid.UUID
	snapshots    map[snapshotKey]core.MonthSnapshot
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[uuid.UUID]core.Transaction),
		categories:   make(map[uuid.UUID]core.Category),
		budgets:      make(map[uuid.UUID]core.Budget),
		budgetIndex:  make(map[budgetKey]uuid.UUID),
		snapshots:    make(map[snapshotKey]core.MonthSnapshot),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// stored strips the category down to its ID, like a foreign key column.
func stored(tx core.Transaction) core.Transaction {
	if tx.HasCategory() {
		tx.Category = &core.CategoryRef{ID: tx.Category.ID}
	} else {
		tx.Category = nil
	}
	return tx
}

// joined resolves the category reference. Callers hold the read lock.
func (s *Store) joined(tx core.Transaction) core.Transaction {
	if tx.Category == nil {
		return tx
	}
	c, ok := s.categories[tx.Category.ID]
	if !ok || c.UserID != tx.UserID {
		tx.Category = nil
		return tx
	}
	tx.Category = c.Ref()
	return tx
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.ID]; exists {
		return fmt.Errorf("insert transaction: duplicate id %s", tx.ID)
	}
	s.transactions[tx.ID] = stored(tx)
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.transactions[tx.ID]
	if !ok || old.UserID != tx.UserID {
		return fmt.Errorf("update transaction %s: %w", tx.ID, storage.ErrNotFound)
	}
	tx.CreatedAt = old.CreatedAt
	s.transactions[tx.ID] = stored(tx)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.transactions[id]
	if !ok || old.UserID != userID {
		return fmt.Errorf("delete transaction %s: %w", id, storage.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID string, id uuid.UUID) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return s.joined(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if !f.From.IsZero() && tx.OccurredOn.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !tx.OccurredOn.Before(f.To) {
			continue
		}
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		out = append(out, s.joined(tx))
	}

	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.OccurredOn.Compare(a.OccurredOn.Time); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ActiveMonths(_ context.Context, since core.Date) ([]storage.UserMonth, error) {
	type row struct {
		user string
		date core.Date
	}
	var rows []row
	s.mu.RLock()
	for _, tx := range s.transactions {
		if tx.OccurredOn.Before(since) {
			continue
		}
		rows = append(rows, row{tx.UserID, tx.OccurredOn})
	}
	s.mu.RUnlock()

	slices.SortFunc(rows, func(a, b row) int {
		if c := cmp.Compare(a.user, b.user); c != 0 {
			return c
		}
		return a.date.Compare(b.date.Time)
	})

	users := make([]string, 0, len(rows))
	dates := make([]core.Date, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user)
		dates = append(dates, r.date)
	}
	return storage.MonthsOf(users, dates), nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.categories[c.ID]; exists {
		return fmt.Errorf("insert category: duplicate id %s", c.ID)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok || old.UserID != c.UserID {
		return fmt.Errorf("update category %s: %w", c.ID, storage.ErrNotFound)
	}
	c.CreatedAt = old.CreatedAt
	s.categories[c.ID] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[id]
	if !ok || old.UserID != userID {
		return fmt.Errorf("delete category %s: %w", id, storage.ErrNotFound)
	}
	delete(s.categories, id)

	for txID, tx := range s.transactions {
		if tx.UserID == userID && tx.Category != nil && tx.Category.ID == id {
			tx.Category = nil
			s.transactions[txID] = tx
		}
	}
	for bID, b := range s.budgets {
		if b.UserID == userID && b.CategoryID == id {
			delete(s.budgets, bID)
			delete(s.budgetIndex, budgetKey{b.UserID, b.CategoryID, b.Year, b.Month})
		}
	}
	return nil
}

func (s *Store) GetCategory(_ context.Context, userID string, id uuid.UUID) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, fmt.Errorf("category %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string, kind *core.CategoryKind) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Category
	for _, c := range s.categories {
		if c.UserID != userID || (kind != nil && c.Kind != *kind) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Category) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey{b.UserID, b.CategoryID, b.Year, b.Month}
	if id, ok := s.budgetIndex[key]; ok {
		existing := s.budgets[id]
		existing.Amount = b.Amount
		existing.UpdatedAt = b.UpdatedAt
		s.budgets[id] = existing
		return existing, nil
	}
	s.budgets[b.ID] = b
	s.budgetIndex[key] = b.ID
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return fmt.Errorf("delete budget %s: %w", id, storage.ErrNotFound)
	}
	delete(s.budgets, id)
	delete(s.budgetIndex, budgetKey{b.UserID, b.CategoryID, b.Year, b.Month})
	return nil
}

func (s *Store) ListBudgets(_ context.Context, userID string, year, month int) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID && b.Year == year && b.Month == month {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b core.Budget) int {
		return cmp.Compare(s.categories[a.CategoryID].Name, s.categories[b.CategoryID].Name)
	})
	return out, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.MonthSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey{snap.UserID, snap.Year, snap.Month}] = snap
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, userID string, year, month int) (core.MonthSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotKey{userID, year, month}]
	if !ok {
		return core.MonthSnapshot{}, fmt.Errorf("snapshot %s %04d-%02d: %w", userID, year, month, storage.ErrNotFound)
	}
	return snap, nil
}
