package http

import (
	"context"
	"net/http"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "storage": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "storage": "ok"})
}

// handleListExpenses lists everything, or the newest ?limit= expenses.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := func() ([]core.Expense, error) {
		if limit > 0 {
			return s.svc.ListRecent(r.Context(), limit)
		}
		return s.svc.ListExpenses(r.Context())
	}()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseList(list))
}

func (s *Server) handleRecentExpenses(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = s.recentLimit
	}
	list, err := s.svc.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseList(list))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = sanitizeInput(req.Name)
	if err := s.validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.svc.CreateExpense(r.Context(), services.ExpenseInput{
		Name:     req.Name,
		Cost:     string(req.Cost),
		Currency: req.Currency,
		Date:     req.Date,
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/expenses/"+formatID(e.ID))
	writeJSON(w, http.StatusCreated, newExpenseResponse(e))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.RemoveExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTagsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validator.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.svc.UpdateTags(r.Context(), id, req.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}

func (s *Server) handleByCost(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.ListByCost(r.Context(), s.limitOr(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseList(list))
}

// handleOver lists expenses costing strictly more than ?amount=.
func (s *Server) handleOver(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("amount") == "" {
		writeError(w, r, newFieldError("amount", "amount is required"))
		return
	}
	amount, err := parseOptionalInt(q, "amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if amount < 0 {
		writeError(w, r, newFieldError("amount", "amount must not be negative"))
		return
	}
	limit, err := parseLimit(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.svc.ListOver(r.Context(), int64(amount), s.limitOr(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseList(list))
}

// handleByMonth lists ?month= of ?year=, defaulting to the current year.
func (s *Server) handleByMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := parseOptionalInt(q, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseOptionalInt(q, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.svc.ListByMonth(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseList(list))
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tagResponse, len(tags))
	for i, t := range tags {
		out[i] = tagResponse{ID: t.ID, Name: t.Name}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": out})
}

func (s *Server) handleUsedTags(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.DistinctTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": names})
}

// handleTagExpenses answers ?tag=a&tag=b with the union of both tags and
// its total. Each tag may also be a comma-separated list.
func (s *Server) handleTagExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.svc.ExpensesForTags(r.Context(), q["tag"], s.limitOr(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := newExpenseList(res.Expenses)
	out.Tags = res.Tags
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSingleTag(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.ListByTag(r.Context(), r.PathValue("name"), s.limitOr(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseList(list))
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.svc.Total(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totalResponse{Total: total.Yen, TotalDisplay: total.String()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(sum))
}
