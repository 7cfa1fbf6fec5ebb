package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
	"kakeibo/internal/report"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

// amount accepts a JSON number or a string the way users type amounts
// ("1,234", "¥980") and rounds it to two places.
type amount decimal.Decimal

func (a *amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return err
	}
	*a = amount(d)
	return nil
}

type transactionRequest struct {
	Type            string     `json:"type"`
	Amount          amount     `json:"amount"`
	TransactionDate core.Date  `json:"transaction_date"`
	CategoryID      *uuid.UUID `json:"category_id"`
	Description     string     `json:"description"`
}

func (req transactionRequest) input() (services.TransactionInput, error) {
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		return services.TransactionInput{}, err
	}
	return services.TransactionInput{
		Kind:        kind,
		Amount:      decimal.Decimal(req.Amount),
		OccurredOn:  req.TransactionDate,
		CategoryID:  req.CategoryID,
		Description: req.Description,
	}, nil
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Type  string `json:"type"`
}

func (req categoryRequest) input() (services.CategoryInput, error) {
	kind, err := core.ParseCategoryKind(req.Type)
	if err != nil {
		return services.CategoryInput{}, err
	}
	return services.CategoryInput{Name: req.Name, Color: req.Color, Icon: req.Icon, Kind: kind}, nil
}

type budgetRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
	Amount     amount    `json:"amount"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
}

// GET /api/categories?kind=income|expense|both
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var kind *core.CategoryKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := core.ParseCategoryKind(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		kind = &k
	}
	cats, err := s.ledger.ListCategories(r.Context(), userID(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cats))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.CreateCategory(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.UpdateCategory(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/categories/defaults
func (s *Server) handleSeedCategories(w http.ResponseWriter, r *http.Request) {
	created, err := s.ledger.SeedDefaultCategories(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": nonNil(created)})
}

// GET /api/transactions?period=&year=&month=&kind=&limit=
// Without period, year or month every transaction is listed.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.TransactionFilter

	if q.Has("period") || q.Has("year") || q.Has("month") {
		p, year, month, err := periodParams(q, s.now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if f.From, f.To, err = report.Range(p, year, month); err != nil {
			writeError(w, r, err)
			return
		}
	}
	kind, err := kindParam(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.Kind = kind
	if f.Limit, err = intParam(q, "limit", 0); err != nil || f.Limit < 0 {
		writeError(w, r, errBadParam)
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), userID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.GetTransaction(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/budgets?year=&month=
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.ledger.ListBudgets(r.Context(), userID(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(budgets))
}

// PUT /api/budgets sets the budget of a category for one month.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.ledger.UpsertBudget(r.Context(), userID(r), services.BudgetInput{
		CategoryID: req.CategoryID,
		Amount:     decimal.Decimal(req.Amount),
		Year:       req.Year,
		Month:      req.Month,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteBudget(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
