package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
	CategoryBoth    CategoryKind = "both"
)

const (
	// DefaultCategoryColor and DefaultCategoryIcon are applied when a category is created without them.
	DefaultCategoryColor = "#3b82f6"
	DefaultCategoryIcon  = "folder"

	MaxDescriptionLength  = 200
	MaxCategoryNameLength = 50
)

type (
	// Kind tags a transaction as income or expense. It is never derived from the amount sign.
	Kind string

	// CategoryKind is the set of transaction kinds a category can be used with.
	CategoryKind string

	// CategoryRef is the category information carried on a transaction.
	// ID is uuid.Nil when the reference only has a display name.
	CategoryRef struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		Color string    `json:"color"`
	}

	Category struct {
		ID        uuid.UUID    `json:"id"`
		UserID    string       `json:"-"`
		Name      string       `json:"name"`
		Color     string       `json:"color"`
		Icon      string       `json:"icon"`
		Kind      CategoryKind `json:"type"`
		CreatedAt time.Time    `json:"created_at"`
		UpdatedAt time.Time    `json:"updated_at"`
	}

	Transaction struct {
		ID          uuid.UUID       `json:"id"`
		UserID      string          `json:"-"`
		Kind        Kind            `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		OccurredOn  Date            `json:"transaction_date"`
		Category    *CategoryRef    `json:"category,omitempty"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	// Budget is a monthly spending limit for one expense category.
	Budget struct {
		ID         uuid.UUID       `json:"id"`
		UserID     string          `json:"-"`
		CategoryID uuid.UUID       `json:"category_id"`
		Amount     decimal.Decimal `json:"amount"`
		Year       int             `json:"year"`
		Month      int             `json:"month"`
		CreatedAt  time.Time       `json:"created_at"`
		UpdatedAt  time.Time       `json:"updated_at"`
	}
)

// ErrValidation is wrapped by every input validation error in this package.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidKind         = fmt.Errorf("%w: invalid transaction kind", ErrValidation)
	ErrInvalidCategoryKind = fmt.Errorf("%w: invalid category kind", ErrValidation)
	ErrNegativeAmount      = fmt.Errorf("%w: negative amount", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrAmountTooLarge      = fmt.Errorf("%w: amount too large", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidYear         = fmt.Errorf("%w: invalid year", ErrValidation)
	ErrInvalidMonth        = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrDescriptionTooLong  = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, MaxDescriptionLength)
	ErrEmptyUserID         = fmt.Errorf("%w: empty user id", ErrValidation)
	ErrEmptyName           = fmt.Errorf("%w: empty category name", ErrValidation)
	ErrNameTooLong         = fmt.Errorf("%w: category name too long (max %d characters)", ErrValidation, MaxCategoryNameLength)
	ErrInvalidColor        = fmt.Errorf("%w: invalid color", ErrValidation)
	ErrMissingCategory     = fmt.Errorf("%w: missing category", ErrValidation)
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ParseKind parses "income" or "expense", ignoring surrounding whitespace and case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func (k Kind) Validate() error {
	switch k {
	case KindIncome, KindExpense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

// ParseCategoryKind parses "income", "expense" or "both".
func ParseCategoryKind(s string) (CategoryKind, error) {
	k := CategoryKind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func (c CategoryKind) Validate() error {
	switch c {
	case CategoryIncome, CategoryExpense, CategoryBoth:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCategoryKind, string(c))
	}
}

// Applies reports whether a category of this kind may be attached to a transaction of kind k.
func (c CategoryKind) Applies(k Kind) bool {
	return c == CategoryBoth || string(c) == string(k)
}

// ValidateAmount rejects negative amounts. Zero is allowed.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// ValidatePeriod checks a year and month pair.
func ValidatePeriod(year, month int) error {
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := t.OccurredOn.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// HasCategory reports whether the transaction references a category by ID.
func (t Transaction) HasCategory() bool {
	return t.Category != nil && t.Category.ID != uuid.Nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ErrNameTooLong
	}
	if !colorPattern.MatchString(c.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, c.Color)
	}
	return c.Kind.Validate()
}

// Ref returns the reference a transaction carries for this category.
func (c Category) Ref() *CategoryRef {
	return &CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color}
}

func (b Budget) Validate() error {
	if b.CategoryID == uuid.Nil {
		return ErrMissingCategory
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return err
	}
	return ValidatePeriod(b.Year, b.Month)
}
