// Package http provides the JSON API over the expense service.
//
// This file holds request decoding and validation. Bodies are checked with
// go-playground/validator and failures are rendered with its English
// translations.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const maxBodyBytes = 1 << 20

// errMalformedBody marks requests whose body is not the expected JSON.
var errMalformedBody = errors.New("malformed request body")

// fieldError reports invalid request input, keyed by JSON field or query
// parameter name.
type fieldError struct {
	Fields map[string]string
}

func (e *fieldError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func newFieldError(field, msg string) *fieldError {
	return &fieldError{Fields: map[string]string{field: msg}}
}

// costValue accepts either a JSON number or a string such as "¥1,500".
type costValue string

func (c *costValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = costValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = costValue(n.String())
	return nil
}

type createExpenseRequest struct {
	Name     string    `json:"name" validate:"required,max=200"`
	Cost     costValue `json:"cost" validate:"required"`
	Currency string    `json:"currency" validate:"omitempty,oneof=Yen Dollars yen dollars"`
	Date     string    `json:"date" validate:"omitempty,max=10"`
	Tags     []string  `json:"tags" validate:"max=32,dive,max=32"`
}

type updateTagsRequest struct {
	Tags []string `json:"tags" validate:"max=32,dive,max=32"`
}

// requestValidator wraps a validator with its English translator.
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() (*requestValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	eng := en.New()
	uni := ut.New(eng, eng)
	trans, found := uni.GetTranslator("en")
	if !found {
		return nil, errors.New("english translator not found")
	}
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}
	return &requestValidator{validate: v, trans: trans}, nil
}

// Struct validates req and converts failures into a fieldError.
func (rv *requestValidator) Struct(req any) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := &fieldError{Fields: make(map[string]string, len(verrs))}
	for _, ve := range verrs {
		fe.Fields[fieldPath(ve.Namespace())] = ve.Translate(rv.trans)
	}
	return fe
}

// fieldPath drops the struct name prefix: "createExpenseRequest.tags[0]" -> "tags[0]".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, newFieldError("id", "id must be a positive integer")
	}
	return id, nil
}

// parseLimit reads ?limit=; absent means 0, which selects the default.
func parseLimit(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, newFieldError("limit", "limit must be a positive integer")
	}
	return n, nil
}

// parseOptionalInt reads an integer query parameter, 0 when absent.
func parseOptionalInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, newFieldError(key, key+" must be an integer")
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}
