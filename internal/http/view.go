package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"registros/internal/core"
	"registros/internal/log"
	appweb "registros/web"
)

var templateFuncs = template.FuncMap{
	"eq2":       func(a, b string) bool { return a == b },
	"filterBar": newFilterBar,
}

// filterBarView feeds the shared "filters" template: the form reloads
// Swap with the response of Target on every change.
type filterBarView struct {
	Filter   filterView
	Target   string
	Swap     string
	Grouping bool
}

func newFilterBar(f filterView, target, swap string, grouping bool) filterBarView {
	return filterBarView{Filter: f, Target: target, Swap: swap, Grouping: grouping}
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// render executes name into a buffer first so a template error becomes a
// clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	body, ok := s.renderBytes(r, name, data)
	if !ok {
		http.Error(w, "Erro ao renderizar página", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) renderBytes(r *http.Request, name string, data any) ([]byte, bool) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldOperation, log.OpRender)
		return nil, false
	}
	return buf.Bytes(), true
}

type option struct {
	Value, Label string
}

var periodOptions = []option{
	{"", "Todo o período"},
	{string(core.Today), "Hoje"},
	{string(core.ThisWeek), "Esta semana"},
	{string(core.ThisMonth), "Este mês"},
}

func personOptions(empty string) []option {
	out := []option{{"", empty}}
	for _, p := range core.KnownPeople {
		out = append(out, option{strconv.FormatInt(p.Celular, 10), p.Label})
	}
	return out
}

// filterView is the filter bar state, shared by the list and the report.
type filterView struct {
	Categoria  string
	Periodo    string
	Pessoa     string
	Agrupar    string
	Categories []string
	Periods    []option
	People     []option
}

// Query re-encodes the active filters for links and hx-get URLs.
func (f filterView) Query() string {
	v := url.Values{}
	if f.Categoria != "" {
		v.Set("categoria", f.Categoria)
	}
	if f.Periodo != "" {
		v.Set("periodo", f.Periodo)
	}
	if f.Pessoa != "" {
		v.Set("pessoa", f.Pessoa)
	}
	if f.Agrupar != "" {
		v.Set("agrupar", f.Agrupar)
	}
	return v.Encode()
}

func (f filterView) withQuery(path string) template.URL {
	if q := f.Query(); q != "" {
		return template.URL(path + "?" + q)
	}
	return template.URL(path)
}

func (f filterView) ListURL() template.URL   { return f.withQuery("/ui/registros") }
func (f filterView) ChartURL() template.URL  { return f.withQuery("/ui/relatorio") }
func (f filterView) ReportURL() template.URL { return f.withQuery("/relatorio") }

func (f filterView) ExportURL(ext string) template.URL {
	return f.withQuery("/registros/export." + ext)
}

type recordRow struct {
	ID         int64
	Titulo     string
	Categoria  string
	Valor      string
	Expense    bool
	Data       string
	Pessoa     string
	Observacao string
}

func toRow(r core.Record) recordRow {
	row := recordRow{
		ID:         r.ID,
		Titulo:     r.DisplayTitle(),
		Categoria:  r.Categoria,
		Expense:    r.IsExpense(),
		Data:       r.Data.Display(),
		Pessoa:     core.PersonLabel(r.Celular),
		Observacao: r.Observacao,
	}
	sign := "+"
	if row.Expense {
		sign = "-"
	}
	row.Valor = sign + core.FormatBRL(r.Amount())
	return row
}

type listView struct {
	Rows     []recordRow
	Count    int
	Total    string
	Negative bool
	Filter   filterView
	Error    string
}

func newListView(rows []core.Record, f filterView) listView {
	total := core.SignedTotal(rows)
	v := listView{
		Count:    len(rows),
		Total:    core.FormatBRL(total.Abs()),
		Negative: total.LessThan(decimal.Zero),
		Filter:   f,
	}
	for _, r := range rows {
		v.Rows = append(v.Rows, toRow(r))
	}
	return v
}

type pageView struct {
	Title     string
	UserEmail string
	AuthOn    bool
}

type indexView struct {
	pageView
	List listView
}

type formView struct {
	ID         int64
	Draft      core.RecordDraft
	Categories []string
	People     []option
	Tipos      []string
	Errors     map[string]string
	Message    string
}

func (f formView) Editing() bool { return f.ID != 0 }

// TipoOptions keeps a legacy tipo selectable when editing an old row.
func (f formView) TipoOptions() []string {
	if f.Draft.Tipo == "" || slices.Contains(f.Tipos, f.Draft.Tipo) {
		return f.Tipos
	}
	return append(append([]string(nil), f.Tipos...), f.Draft.Tipo)
}

func (f formView) Action() string {
	if f.ID != 0 {
		return "/registros/" + strconv.FormatInt(f.ID, 10)
	}
	return "/registros"
}

type reportView struct {
	pageView
	Filter  filterView
	Chart   chartView
	Records int
	Error   string
}

type authView struct {
	pageView
	Tab     string // entrar, cadastrar, recuperar or redefinir
	Email   string
	Token   string
	Message string
	Error   string
}
