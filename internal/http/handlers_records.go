package http

import (
	"context"
	"errors"
	"net/http"

	"registros/internal/core"
	"registros/internal/log"
)

const (
	msgLoadFailed   = "Erro ao carregar registros"
	msgSaveFailed   = "Erro ao salvar registro"
	msgDeleteFailed = "Erro ao excluir registro"
	msgNotFound     = "Registro não encontrado"
	msgBadRequest   = "Formato de requisição inválido"
	msgBadFilter    = "Filtro inválido"
	msgCreated      = "Registro criado com sucesso!"
	msgUpdated      = "Registro atualizado com sucesso!"
	msgDeleted      = "Registro excluído"
)

var formTipos = []string{core.TipoEntrada, core.TipoSaida}

func (s *Server) page(r *http.Request, title string) pageView {
	v := pageView{Title: title, AuthOn: s.opts.AuthRequired}
	if c, ok := sessionFromContext(r.Context()); ok {
		v.UserEmail = c.Email
	}
	return v
}

func (s *Server) newFilterView(ctx context.Context, p FilterParams) filterView {
	return filterView{
		Categoria:  p.Filter.Category,
		Periodo:    p.Periodo,
		Pessoa:     p.Filter.Person,
		Agrupar:    p.GroupBy,
		Categories: s.records.Categories(ctx),
		Periods:    periodOptions,
		People:     personOptions("Todas as pessoas"),
	}
}

// loadList runs the filter pipeline for the list page and partial. A bad
// filter or a failed fetch comes back as the view's Error.
func (s *Server) loadList(r *http.Request) listView {
	ctx := r.Context()
	params, perr := ParseFilterParams(r.URL.Query())
	fv := s.newFilterView(ctx, params)
	if perr != nil {
		return listView{Filter: fv, Error: msgBadFilter}
	}

	rows, err := s.records.List(ctx, params.Order, params.Filter, s.now())
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list registros",
			log.FieldError, err,
			log.FieldOperation, log.OpList)
		return listView{Filter: fv, Error: msgLoadFailed}
	}
	return newListView(rows, fv)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", indexView{
		pageView: s.page(r, "Registros"),
		List:     s.loadList(r),
	})
}

func (s *Server) handleListPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "list", s.loadList(r))
}

func (s *Server) newFormView(ctx context.Context, id int64, d core.RecordDraft) formView {
	return formView{
		ID:         id,
		Draft:      d,
		Categories: s.records.Categories(ctx),
		People:     personOptions("Ninguém"),
		Tipos:      formTipos,
	}
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	d := core.RecordDraft{
		Tipo: core.TipoSaida,
		Data: core.DateOf(s.now()).ISO(),
	}
	s.render(w, r, http.StatusOK, "form", s.newFormView(r.Context(), 0, d))
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	rec, err := s.records.Get(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(msgNotFound).TriggerErrorNotification(msgNotFound).Write(w)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load registro",
			log.FieldError, err,
			log.FieldRecordID, id,
			log.FieldOperation, log.OpRead)
		InternalServerError(msgLoadFailed).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "form", s.newFormView(r.Context(), id, core.DraftOf(rec)))
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	s.saveRecord(w, r, 0)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	s.saveRecord(w, r, id)
}

// saveRecord creates when id is zero and updates otherwise. Validation
// failures re-render the form with status 422.
func (s *Server) saveRecord(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Parse body error",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	draft := parser.Draft()

	op := log.OpCreate
	var (
		rec core.Record
		err error
	)
	if id == 0 {
		rec, err = s.records.Create(ctx, draft)
	} else {
		op = log.OpUpdate
		rec, err = s.records.Update(ctx, id, draft)
	}

	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		log.FromContext(ctx).DebugContext(ctx, "Registro rejected",
			log.FieldOperation, log.OpValidate,
			"fields", len(ve.Fields))
		view := s.newFormView(ctx, id, draft)
		view.Errors = ve.Fields
		view.Message = ve.UserMessage()
		body, ok := s.renderBytes(r, "form", view)
		if !ok {
			InternalServerError(msgSaveFailed).Write(w)
			return
		}
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(view.Message).
			BodyHTML(string(body)).
			Write(w)
		return
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(msgNotFound).TriggerErrorNotification(msgNotFound).Write(w)
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to save registro", err, op,
			log.NewFields().WithRecord(id, draft.Titulo, draft.Valor, draft.Categoria))
		InternalServerError(msgSaveFailed).TriggerErrorNotification(msgSaveFailed).Write(w)
		return
	}

	msg := msgCreated
	if op == log.OpCreate {
		s.appMetrics.created.Add(1)
	} else {
		s.appMetrics.updated.Add(1)
		msg = msgUpdated
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogRecordSaved(ctx, op,
		rec.ID, rec.Titulo, core.FormatPlain(rec.Amount()), rec.Categoria)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		Header("HX-Reswap", "none").
		TriggerRecordSaved(rec.ID).
		TriggerFormClose().
		TriggerSuccessNotification(msg).
		Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := parseID(r)
	if !ok {
		BadRequestError(msgBadRequest).Write(w)
		return
	}

	err := s.records.Delete(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(msgNotFound).TriggerErrorNotification(msgNotFound).Write(w)
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to delete registro",
			log.FieldError, err,
			log.FieldRecordID, id,
			log.FieldOperation, log.OpDelete)
		InternalServerError(msgDeleteFailed).TriggerErrorNotification(msgDeleteFailed).Write(w)
		return
	}

	s.appMetrics.deleted.Add(1)
	log.FromContext(ctx).InfoContext(ctx, "Registro deleted",
		log.FieldRecordID, id,
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerRecordDeleted(id).
		TriggerSuccessNotification(msgDeleted).
		Write(w)
}
