package http

import (
	"net/http"

	"smartexpense/internal/cache"
	"smartexpense/internal/core"
	"smartexpense/internal/log"
)

// cached serves a read-only JSON document, reusing the encoding while the
// collection version is unchanged.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, build func() any) {
	key := cache.Key(s.expenses.Version(), r.URL.Path, r.URL.RawQuery)
	if data, ok := s.responses.Get(key); ok {
		NewJSONResponse().Header("X-Cache", "HIT").RawBody(data).Write(w)
		return
	}

	data, err := encodeJSON(build())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Encode response failed", log.FieldError, err)
		InternalServerError("encoding failed").Write(w)
		return
	}
	s.responses.Set(key, data)
	NewJSONResponse().Header("X-Cache", "MISS").RawBody(data).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := ParseLimit(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	s.cached(w, r, func() any {
		found := s.expenses.Find(q)
		if limit > 0 && len(found) > limit {
			found = found[len(found)-limit:]
		}
		return map[string]any{
			"expenses": toDTOs(found),
			"count":    len(found),
		}
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.expenses.Get(id)
	if !ok {
		NotFoundError("expense not found").Write(w)
		return
	}
	NewJSONResponse().Body(toDTO(e)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	fields, err := ParseExpenseRequest(r, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	id, err := s.expenses.Add(ctx, fields)
	if err != nil {
		logger.ErrorContext(ctx, "Create expense failed", log.FieldExpenseID, id, log.FieldError, err)
		NewJSONResponse().
			Status(http.StatusInternalServerError).
			Body(errorBody{Error: "expense recorded but could not be saved", ID: id}).
			Write(w)
		return
	}

	e, _ := s.expenses.Get(id)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+id).
		Body(toDTO(e)).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	existing, ok := s.expenses.Get(id)
	if !ok {
		NotFoundError("expense not found").Write(w)
		return
	}

	// An omitted date keeps the current one rather than defaulting to today.
	fields, err := ParseExpenseRequest(r, existing.Date.Time)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	found, err := s.expenses.Update(ctx, id, fields)
	if !found {
		NotFoundError("expense not found").Write(w)
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Update expense failed", log.FieldExpenseID, id, log.FieldError, err)
		NewJSONResponse().
			Status(http.StatusInternalServerError).
			Body(errorBody{Error: "expense updated but could not be saved", ID: id}).
			Write(w)
		return
	}

	updated, _ := s.expenses.Get(id)
	NewJSONResponse().Body(toDTO(updated)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	found, err := s.expenses.Remove(ctx, id)
	if !found {
		NotFoundError("expense not found").Write(w)
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Delete expense failed", log.FieldExpenseID, id, log.FieldError, err)
		NewJSONResponse().
			Status(http.StatusInternalServerError).
			Body(errorBody{Error: "expense removed but could not be saved", ID: id}).
			Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func() any {
		return map[string]any{
			"total": core.FormatAmount(s.expenses.Total()),
			"count": s.expenses.Len(),
		}
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func() any {
		return map[string]any{"months": toMonthDTOs(s.expenses.MonthlySummary())}
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func() any {
		return map[string]any{"categories": s.expenses.Categories()}
	})
}
