package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"registros/internal/auth"
	"registros/internal/core"
	"registros/internal/log"
)

type apiError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeAPIMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// writeAPIError maps service errors onto status codes. Storage failures
// are logged and hidden behind a generic message.
func writeAPIError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		ve *core.ValidationError
		ae *core.AuthError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: ve.UserMessage(), Fields: ve.Fields})
	case errors.Is(err, core.ErrNotFound):
		writeAPIMessage(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, auth.ErrEmailTaken):
		writeAPIMessage(w, http.StatusConflict, auth.MsgEmailTaken)
	case errors.As(err, &ae):
		writeAPIMessage(w, http.StatusUnauthorized, ae.Message)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "API request failed",
			log.FieldError, err,
			log.FieldOperation, op)
		writeAPIMessage(w, http.StatusInternalServerError, "Erro interno")
	}
}

func parseAPIBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil || !p.IsJSON() {
		writeAPIMessage(w, http.StatusBadRequest, msgBadRequest)
		return nil, false
	}
	return p, true
}

// password accepts both the English and the Portuguese key.
func password(p *RequestBodyParser) string {
	if v := p.Raw("password"); v != "" {
		return v
	}
	return p.Raw("senha")
}

type apiUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) apiSignIn(w http.ResponseWriter, r *http.Request) {
	p, ok := parseAPIBody(w, r)
	if !ok {
		return
	}
	token, u, err := s.auth.SignIn(r.Context(), p.Get("email"), password(p))
	if err != nil {
		writeAPIError(w, r, "signin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int64(s.auth.SessionTTL() / time.Second),
		"user":       apiUser{ID: u.ID, Email: u.Email},
	})
}

func (s *Server) apiSignUp(w http.ResponseWriter, r *http.Request) {
	p, ok := parseAPIBody(w, r)
	if !ok {
		return
	}
	u, err := s.auth.SignUp(r.Context(), p.Get("email"), password(p))
	if err != nil {
		var ae *core.AuthError
		if errors.As(err, &ae) && !errors.Is(err, auth.ErrEmailTaken) {
			writeAPIMessage(w, http.StatusUnprocessableEntity, ae.Message)
			return
		}
		writeAPIError(w, r, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, apiUser{ID: u.ID, Email: u.Email})
}

func (s *Server) apiRequestReset(w http.ResponseWriter, r *http.Request) {
	p, ok := parseAPIBody(w, r)
	if !ok {
		return
	}
	if err := s.auth.RequestPasswordReset(r.Context(), p.Get("email"), p.Get("redirect_url")); err != nil {
		var ae *core.AuthError
		if errors.As(err, &ae) && ae.Err == nil {
			writeAPIMessage(w, http.StatusUnprocessableEntity, ae.Message)
			return
		}
		writeAPIError(w, r, "reset", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": auth.MsgResetSent})
}

type apiList struct {
	Registros []core.Record   `json:"registros"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
}

func (s *Server) apiListRecords(w http.ResponseWriter, r *http.Request) {
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		writeAPIMessage(w, http.StatusBadRequest, msgBadFilter)
		return
	}
	rows, err := s.records.List(r.Context(), params.Order, params.Filter, s.now())
	if err != nil {
		writeAPIError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, apiList{
		Registros: rows,
		Count:     len(rows),
		Total:     core.SignedTotal(rows),
	})
}

func (s *Server) apiGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeAPIMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) apiCreateRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := parseAPIBody(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Create(r.Context(), p.Draft())
	if err != nil {
		writeAPIError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.created.Add(1)
	w.Header().Set("Location", "/api/v1/registros/"+formatID(rec.ID))
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) apiUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeAPIMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	p, ok := parseAPIBody(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Update(r.Context(), id, p.Draft())
	if err != nil {
		writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	s.appMetrics.updated.Add(1)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) apiDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeAPIMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	if err := s.records.Delete(r.Context(), id); err != nil {
		writeAPIError(w, r, log.OpDelete, err)
		return
	}
	s.appMetrics.deleted.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

type apiBucket struct {
	Label      string                     `json:"label"`
	Date       core.Date                  `json:"date"`
	Total      decimal.Decimal            `json:"total"`
	ByPerson   map[string]decimal.Decimal `json:"by_person"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
	Count      int                        `json:"count"`
}

func (s *Server) apiReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		writeAPIMessage(w, http.StatusBadRequest, msgBadFilter)
		return
	}
	rep, err := s.records.Report(r.Context(), params.Filter, s.now())
	if err != nil {
		writeAPIError(w, r, log.OpReport, err)
		return
	}
	buckets := make([]apiBucket, 0, len(rep.Buckets))
	for _, b := range rep.Buckets {
		buckets = append(buckets, apiBucket{
			Label:      b.Label,
			Date:       b.Date,
			Total:      b.Total,
			ByPerson:   b.ByPerson,
			ByCategory: b.ByCategory,
			Count:      b.Count,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"buckets":    buckets,
		"categories": rep.Categories,
		"records":    rep.Total,
		"group_by":   params.GroupBy,
	})
}
