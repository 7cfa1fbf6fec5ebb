package http

import (
	"net/http"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/report"
)

// GET /api/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, u)
}

// GET /api/reports/summary?period=&year=&month=
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, year, month, err := periodParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.reports.Summary(r.Context(), userID(r), p, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/reports/daily?year=&month=
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := s.reports.Daily(r.Context(), userID(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// GET /api/reports/categories?kind=&period=&year=&month=
// kind defaults to expense.
func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, year, month, err := periodParams(q, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := kindParam(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if kind == "" {
		kind = core.KindExpense
	}
	totals, err := s.reports.Categories(r.Context(), userID(r), kind, p, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(totals))
}

// GET /api/reports/top?n=&period=&year=&month=
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, year, month, err := periodParams(q, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := intParam(q, "n", report.DefaultTopN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := s.reports.Top(r.Context(), userID(r), n, p, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top.Income = nonNil(top.Income)
	top.Expense = nonNil(top.Expense)
	writeJSON(w, http.StatusOK, top)
}

// GET /api/reports/comparison?period=&year=&month=
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	p, year, month, err := periodParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.reports.Comparison(r.Context(), userID(r), p, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// GET /api/reports/budgets?year=&month=
func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	progress, err := s.reports.Budgets(r.Context(), userID(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(progress))
}

// GET /api/dashboard?year=&month=
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.reports.Dashboard(r.Context(), userID(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
