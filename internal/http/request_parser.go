// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/services"
)

const maxBodyBytes = 64 << 10

// ExpenseRequest is the body accepted by create and update.
type ExpenseRequest struct {
	Category string     `json:"category"`
	Amount   flexString `json:"amount"`
	Date     string     `json:"date"`
	Note     string     `json:"note"`
}

// flexString accepts a JSON string or number, so both "12,50" and 12.5 work.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number")
	}
	*f = flexString(n.String())
	return nil
}

// ParseExpenseRequest decodes and validates the request body into fields.
// An empty date means today according to now.
func ParseExpenseRequest(r *http.Request, now time.Time) (core.Fields, error) {
	var req ExpenseRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Fields{}, errors.New("request body is empty")
		}
		return core.Fields{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	return core.ParseFields(
		sanitizeInput(req.Category),
		string(req.Amount),
		req.Date,
		sanitizeInput(req.Note),
		now,
	)
}

// ParseQuery reads the list filters: category, q, from and to (yyyy-mm-dd).
func ParseQuery(query url.Values) (services.Query, error) {
	q := services.Query{
		Category: sanitizeInput(query.Get("category")),
		Text:     sanitizeInput(query.Get("q")),
	}

	for name, dst := range map[string]**core.Date{"from": &q.From, "to": &q.To} {
		v := strings.TrimSpace(query.Get(name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return services.Query{}, fmt.Errorf("invalid %s date: %w", name, err)
		}
		*dst = &d
	}
	return q, nil
}

// ParseLimit reads an optional positive "limit" parameter; zero means no limit.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q: must be a non-negative integer", v)
	}
	return n, nil
}
