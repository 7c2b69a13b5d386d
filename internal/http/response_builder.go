package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/middleware/trace"
)

type expenseResponse struct {
	ID          int64    `json:"id"`
	Date        string   `json:"date"`
	Name        string   `json:"name"`
	Cost        int64    `json:"cost"`
	CostDisplay string   `json:"cost_display"`
	Tags        []string `json:"tags"`
}

type expenseListResponse struct {
	Expenses     []expenseResponse `json:"expenses"`
	Count        int               `json:"count"`
	Total        int64             `json:"total"`
	TotalDisplay string            `json:"total_display"`
	Tags         []string          `json:"tags,omitempty"`
}

type totalResponse struct {
	Total        int64  `json:"total"`
	TotalDisplay string `json:"total_display"`
}

type tagTotalResponse struct {
	Name         string `json:"name"`
	Count        int64  `json:"count"`
	Total        int64  `json:"total"`
	TotalDisplay string `json:"total_display"`
}

type summaryResponse struct {
	Total        int64              `json:"total"`
	TotalDisplay string             `json:"total_display"`
	Count        int64              `json:"count"`
	ByTag        []tagTotalResponse `json:"by_tag"`
}

type tagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return expenseResponse{
		ID:          e.ID,
		Date:        e.Date.String(),
		Name:        e.Name,
		Cost:        e.Cost.Yen,
		CostDisplay: e.Cost.String(),
		Tags:        tags,
	}
}

func newExpenseList(list []core.Expense) expenseListResponse {
	out := make([]expenseResponse, len(list))
	for i, e := range list {
		out[i] = newExpenseResponse(e)
	}
	total := core.SumCosts(list)
	return expenseListResponse{
		Expenses:     out,
		Count:        len(out),
		Total:        total.Yen,
		TotalDisplay: total.String(),
	}
}

func newSummaryResponse(s core.Summary) summaryResponse {
	byTag := make([]tagTotalResponse, len(s.ByTag))
	for i, t := range s.ByTag {
		byTag[i] = tagTotalResponse{
			Name:         t.Name,
			Count:        t.Count,
			Total:        t.Total.Yen,
			TotalDisplay: t.Total.String(),
		}
	}
	return summaryResponse{
		Total:        s.Total.Yen,
		TotalDisplay: s.Total.String(),
		Count:        s.Count,
		ByTag:        byTag,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidCost,
	core.ErrInvalidDate,
	core.ErrInvalidCurrency,
	core.ErrInvalidTag,
	core.ErrInvalidMonth,
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var fe *fieldError
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrExpenseNotFound):
		return http.StatusNotFound
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err as JSON. Internal errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:     err.Error(),
		RequestID: trace.GetRequestID(r.Context()),
	}

	var fe *fieldError
	if errors.As(err, &fe) {
		resp.Error = "invalid request"
		resp.Fields = fe.Fields
	}

	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().WithError(err).WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").ToSlice()...)
		resp.Error = http.StatusText(status)
	}

	writeJSON(w, status, resp)
}
