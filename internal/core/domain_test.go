package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct{ year, month, want int }{
		{2024, 2, 29},
		{2023, 2, 28},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tc := range cases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Fatalf("DaysIn(%d,%d)=%d want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestDateJSONAndScan(t *testing.T) {
	d := NewDate(2024, 2, 3)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-02-03"` {
		t.Fatalf("unexpected json %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip mismatch %v", back)
	}

	if err := json.Unmarshal([]byte(`"2024-13-01"`), &back); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	var scanned Date
	if err := scanned.Scan("2024-02-03T00:00:00Z"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if scanned.String() != "2024-02-03" {
		t.Fatalf("scan got %s", scanned)
	}
	if err := scanned.Scan(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)); err != nil || scanned.String() != "2024-05-06" {
		t.Fatalf("scan time got %s (err=%v)", scanned, err)
	}
	if err := scanned.Scan(42); err == nil {
		t.Fatalf("expected error for int")
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"income", KindIncome, true},
		{" Expense ", KindExpense, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidKind) {
			t.Fatalf("%q expected ErrInvalidKind, got %v", tc.in, err)
		}
	}
}

func TestCategoryKindApplies(t *testing.T) {
	if !CategoryBoth.Applies(KindIncome) || !CategoryBoth.Applies(KindExpense) {
		t.Fatalf("both must apply to every kind")
	}
	if !CategoryIncome.Applies(KindIncome) || CategoryIncome.Applies(KindExpense) {
		t.Fatalf("income applicability wrong")
	}
	if CategoryExpense.Applies(KindIncome) {
		t.Fatalf("expense category must not apply to income")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Kind:        KindExpense,
		Amount:      decimal.NewFromInt(500),
		OccurredOn:  NewDate(2024, 2, 3),
		Description: "lunch",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be valid, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Transaction)
		want error
	}{
		{"bad kind", func(tx *Transaction) { tx.Kind = "refund" }, ErrInvalidKind},
		{"negative", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, ErrNegativeAmount},
		{"too large", func(tx *Transaction) { tx.Amount = decimal.New(1, 10) }, ErrAmountTooLarge},
		{"zero date", func(tx *Transaction) { tx.OccurredOn = Date{} }, ErrInvalidDate},
		{"long description", func(tx *Transaction) { tx.Description = strings.Repeat("あ", 201) }, ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		tx := good
		tc.mut(&tx)
		err := tx.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: error should wrap ErrValidation", tc.name)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "食費", Color: "#ef4444", Kind: CategoryExpense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Category{
		{Name: " ", Color: "#ef4444", Kind: CategoryExpense},
		{Name: strings.Repeat("x", 51), Color: "#ef4444", Kind: CategoryExpense},
		{Name: "a", Color: "red", Kind: CategoryExpense},
		{Name: "a", Color: "#ef4444", Kind: "other"},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{CategoryID: uuid.New(), Amount: decimal.NewFromInt(30000), Year: 2024, Month: 2}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noCat := good
	noCat.CategoryID = uuid.Nil
	if err := noCat.Validate(); !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}

	badMonth := good
	badMonth.Month = 13
	if err := badMonth.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}
