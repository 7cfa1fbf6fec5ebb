package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
	"kakeibo/internal/events"
	"kakeibo/internal/log"
	"kakeibo/internal/storage"
)

var (
	// ErrCategoryKindMismatch is returned when a category does not apply to
	// the kind of the transaction or budget it is attached to.
	ErrCategoryKindMismatch = fmt.Errorf("%w: category does not apply to this kind", core.ErrValidation)
	// ErrUnknownCategory is returned when an input references a category the
	// user does not own.
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", core.ErrValidation)
)

// TransactionInput is the user supplied part of a transaction.
type TransactionInput struct {
	Kind        core.Kind
	Amount      decimal.Decimal
	OccurredOn  core.Date
	CategoryID  *uuid.UUID
	Description string
}

type CategoryInput struct {
	Name  string
	Color string
	Icon  string
	Kind  core.CategoryKind
}

type BudgetInput struct {
	CategoryID uuid.UUID
	Amount     decimal.Decimal
	Year       int
	Month      int
}

// Invalidator drops cached views of a user's data.
type Invalidator interface {
	Invalidate(userID string)
}

// LedgerService orchestrates ledger writes across the store and the event
// publisher. The store is the source of truth: events go out after a write
// commits and a failed publish is only logged.
type LedgerService struct {
	store     storage.Store
	publisher events.Publisher
	cache     Invalidator
	logger    *log.Logger
	now       func() time.Time
}

// NewLedgerService wires a ledger. publisher and cache may be nil.
func NewLedgerService(store storage.Store, publisher events.Publisher, cache Invalidator, logger *log.Logger) *LedgerService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
}

// CreateTransaction validates in, stores it for userID and announces the change.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	if userID == "" {
		return core.Transaction{}, core.ErrEmptyUserID
	}
	now := s.now().UTC()
	tx := core.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      core.RoundAmount(in.Amount),
		OccurredOn:  in.OccurredOn,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.attachCategory(ctx, &tx, in.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithUser(userID).WithTransaction(tx.ID.String(), string(tx.Kind), core.FormatYen(tx.Amount), categoryName(tx)).ToSlice()...)
	s.changed(ctx, events.TransactionCreated, tx)
	return tx, nil
}

// UpdateTransaction replaces the user editable fields of a transaction. When
// the date moves to another month both months are announced.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID string, id uuid.UUID, in TransactionInput) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	tx := old
	tx.Kind = in.Kind
	tx.Amount = core.RoundAmount(in.Amount)
	tx.OccurredOn = in.OccurredOn
	tx.Description = strings.TrimSpace(in.Description)
	tx.UpdatedAt = s.now().UTC()
	if err := s.attachCategory(ctx, &tx, in.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithUser(userID).WithTransaction(tx.ID.String(), string(tx.Kind), core.FormatYen(tx.Amount), categoryName(tx)).ToSlice()...)
	s.changed(ctx, events.TransactionUpdated, tx)
	if !tx.OccurredOn.InMonth(old.OccurredOn.Year(), old.OccurredOn.Month()) {
		s.changed(ctx, events.TransactionUpdated, old)
	}
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error {
	tx, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID,
		log.FieldTransactionID, id)
	s.changed(ctx, events.TransactionDeleted, tx)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID string, id uuid.UUID) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	if f.Kind != "" {
		if err := f.Kind.Validate(); err != nil {
			return nil, err
		}
	}
	return s.store.ListTransactions(ctx, userID, f)
}

// attachCategory resolves id against the user's categories and checks that
// the category applies to the transaction kind. A nil id clears the category.
func (s *LedgerService) attachCategory(ctx context.Context, tx *core.Transaction, id *uuid.UUID) error {
	if id == nil || *id == uuid.Nil {
		tx.Category = nil
		return nil
	}
	if err := tx.Kind.Validate(); err != nil {
		return err
	}
	c, err := s.category(ctx, tx.UserID, *id)
	if err != nil {
		return err
	}
	if !c.Kind.Applies(tx.Kind) {
		return fmt.Errorf("%w: %q is %s, transaction is %s", ErrCategoryKindMismatch, c.Name, c.Kind, tx.Kind)
	}
	tx.Category = c.Ref()
	return nil
}

func (s *LedgerService) category(ctx context.Context, userID string, id uuid.UUID) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// changed invalidates cached reports and publishes the event for tx's month.
func (s *LedgerService) changed(ctx context.Context, typ events.EventType, tx core.Transaction) {
	s.invalidate(tx.UserID)

	e := events.NewTransactionEvent(typ, tx, s.now())
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldEventType, e.Type,
			log.FieldTransactionID, e.TransactionID,
			log.FieldUserID, e.UserID,
			log.FieldError, err)
	}
}

func (s *LedgerService) invalidate(userID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}

func categoryName(tx core.Transaction) string {
	if tx.Category == nil {
		return ""
	}
	return tx.Category.Name
}

// CreateCategory stores a new category. Color and icon get defaults when empty.
func (s *LedgerService) CreateCategory(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	if userID == "" {
		return core.Category{}, core.ErrEmptyUserID
	}
	now := s.now().UTC()
	c := core.Category{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
	}
	applyCategoryInput(&c, in, now)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, userID,
		log.FieldCategory, c.Name,
		log.FieldKind, c.Kind)
	return c, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, userID string, id uuid.UUID, in CategoryInput) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	applyCategoryInput(&c, in, s.now().UTC())
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	// names and colors show up in the cached breakdowns
	s.invalidate(userID)
	return c, nil
}

// DeleteCategory removes a category. Its transactions become uncategorized
// and its budgets are removed.
func (s *LedgerService) DeleteCategory(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.invalidate(userID)
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldUserID, userID,
		"category_id", id)
	return nil
}

func (s *LedgerService) GetCategory(ctx context.Context, userID string, id uuid.UUID) (core.Category, error) {
	return s.store.GetCategory(ctx, userID, id)
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string, kind *core.CategoryKind) ([]core.Category, error) {
	if kind != nil {
		if err := kind.Validate(); err != nil {
			return nil, err
		}
	}
	return s.store.ListCategories(ctx, userID, kind)
}

func applyCategoryInput(c *core.Category, in CategoryInput, now time.Time) {
	c.Name = strings.TrimSpace(in.Name)
	c.Color = strings.TrimSpace(in.Color)
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	c.Icon = strings.TrimSpace(in.Icon)
	if c.Icon == "" {
		c.Icon = core.DefaultCategoryIcon
	}
	c.Kind = in.Kind
	c.UpdatedAt = now
}

// UpsertBudget sets the monthly limit of an expense category. Setting it
// again for the same month replaces the amount.
func (s *LedgerService) UpsertBudget(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	if userID == "" {
		return core.Budget{}, core.ErrEmptyUserID
	}
	now := s.now().UTC()
	b := core.Budget{
		ID:         uuid.New(),
		UserID:     userID,
		CategoryID: in.CategoryID,
		Amount:     core.RoundAmount(in.Amount),
		Year:       in.Year,
		Month:      in.Month,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	c, err := s.category(ctx, userID, in.CategoryID)
	if err != nil {
		return core.Budget{}, err
	}
	if !c.Kind.Applies(core.KindExpense) {
		return core.Budget{}, fmt.Errorf("%w: budgets need an expense category, %q is %s", ErrCategoryKindMismatch, c.Name, c.Kind)
	}

	stored, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.invalidate(userID)
	s.logger.InfoContext(ctx, "Budget set",
		log.NewFields().WithUser(userID).WithPeriod(b.Year, b.Month).ToSlice()...)
	return stored, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.invalidate(userID)
	return nil
}

func (s *LedgerService) ListBudgets(ctx context.Context, userID string, year, month int) ([]core.Budget, error) {
	if err := core.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	return s.store.ListBudgets(ctx, userID, year, month)
}
