// Package report turns a collection of transactions into the totals shown on
// summaries and charts.
//
// Every function is a pure computation over its arguments: nothing is cached,
// the input slice is never modified and each call returns freshly allocated
// results, so the functions are safe to call from concurrent requests.
// Input is validated before anything is summed; a transaction with an unknown
// kind or a negative amount fails the whole call instead of being skipped.
package report

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

const (
	// UncategorizedKey groups transactions without a usable category reference.
	UncategorizedKey = "uncategorized"
	// UncategorizedLabel is the display label for that group.
	UncategorizedLabel = "uncategorized"
	// UncategorizedColor is the neutral chart color for that group.
	UncategorizedColor = "#6b7280"

	// DefaultTopN is how many categories the ranking views show per kind.
	DefaultTopN = 5
)

var (
	ErrInvalidTopN   = fmt.Errorf("%w: top-n must be at least 1", core.ErrValidation)
	ErrInvalidPeriod = fmt.Errorf("%w: unknown period", core.ErrValidation)
)

var hundred = decimal.NewFromInt(100)

// validate checks the two invariants aggregation depends on.
func validate(txs []core.Transaction) error {
	for i, tx := range txs {
		if err := tx.Kind.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if tx.Amount.IsNegative() {
			return fmt.Errorf("transaction %d: %w", i, core.ErrNegativeAmount)
		}
	}
	return nil
}

// group identifies the bucket a transaction is attributed to.
type group struct {
	key   string
	label string
	color string
}

// groupOf joins by category ID when there is one and falls back to the display
// name only for references that never had an ID. Two categories sharing a
// name therefore stay separate.
func groupOf(tx core.Transaction) group {
	c := tx.Category
	if c == nil {
		return group{key: UncategorizedKey, label: UncategorizedLabel, color: UncategorizedColor}
	}

	name := strings.TrimSpace(c.Name)
	g := group{label: name, color: c.Color}
	switch {
	case c.ID != uuid.Nil:
		g.key = "id:" + c.ID.String()
	case name != "":
		g.key = "name:" + name
	default:
		return group{key: UncategorizedKey, label: UncategorizedLabel, color: UncategorizedColor}
	}
	if g.label == "" {
		g.label = UncategorizedLabel
	}
	if g.color == "" {
		g.color = UncategorizedColor
	}
	return g
}

// share returns part as a percentage of whole with two decimals, or zero when
// whole is zero.
func share(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}
