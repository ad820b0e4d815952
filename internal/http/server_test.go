package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"registros/internal/auth"
	"registros/internal/cache"
	"registros/internal/core"
	"registros/internal/records"
	"registros/internal/records/memory"
	"registros/internal/services"
)

var fixedNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func seedRecords() []core.Record {
	tani := core.Tani.Celular
	return []core.Record{
		{
			ID:        1,
			Titulo:    "Salário",
			Categoria: "Outros",
			Valor:     decimal.NewNullDecimal(decimal.NewFromInt(100)),
			Tipo:      core.TipoEntrada,
			Data:      core.NewDate(2024, 3, 4),
			Celular:   &tani,
		},
		{
			ID:        2,
			Titulo:    "Mercado",
			Categoria: "Alimentação",
			Valor:     decimal.NewNullDecimal(decimal.NewFromInt(30)),
			Tipo:      core.TipoSaida,
			Data:      core.NewDate(2024, 3, 5),
		},
	}
}

type testServer struct {
	*Server
	repo *memory.Store
	auth *auth.Service
}

func newTestServer(t *testing.T, authRequired bool) *testServer {
	t.Helper()
	repo := memory.New(seedRecords()...)
	svc := services.NewRecordService(repo, cache.NewLRUCache[[]core.Record](4, time.Minute), nil)
	authSvc := auth.NewService(auth.NewMemoryStore(), nil, auth.Config{
		JWTSecret:  "test-secret-0123456789",
		BcryptCost: bcrypt.MinCost,
	})

	srv, err := NewServer(":0", Deps{
		Records: svc,
		Auth:    authSvc,
		Checks:  map[string]records.Pinger{"records": repo},
	}, Options{
		AuthRequired:       authRequired,
		CORSAllowedOrigins: []string{"*"},
		RateLimitPerMinute: 1000,
		Clock:              func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return &testServer{Server: srv, repo: repo, auth: authSvc}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func htmxForm(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func TestNewServer_RequiresRecordService(t *testing.T) {
	_, err := NewServer(":0", Deps{}, Options{})
	assert.Error(t, err)
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Salário")
	assert.Contains(t, body, "Mercado")
	assert.Contains(t, body, "R$ 70,00")
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	}
}

func TestListPartialFilters(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ui/registros?categoria=Alimenta%C3%A7%C3%A3o", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Mercado")
	assert.NotContains(t, rr.Body.String(), "Salário")

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/ui/registros?periodo=ano", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), msgBadFilter)
}

func TestCreateRecordValidationAndSuccess(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(htmxForm(http.MethodPost, "/registros", url.Values{"titulo": {"Padaria"}}))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), core.MissingFieldsMessage)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "show-notification")
	assert.Equal(t, 2, ts.repo.Len())

	rr = ts.do(htmxForm(http.MethodPost, "/registros", url.Values{
		"titulo":    {"Padaria"},
		"valor":     {"12,50"},
		"tipo":      {core.TipoSaida},
		"data":      {"2024-03-06"},
		"categoria": {"Alimentação"},
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	trigger := rr.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, "registro:saved")
	assert.Contains(t, trigger, "form:close")
	assert.Equal(t, "none", rr.Header().Get("HX-Reswap"))
	assert.Equal(t, 3, ts.repo.Len())

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/ui/registros", nil))
	assert.Contains(t, rr.Body.String(), "Padaria")
	assert.Equal(t, int64(1), ts.appMetrics.created.Load())
}

func TestCreateRecordWithoutHTMXRedirects(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/registros", strings.NewReader(url.Values{
		"titulo": {"Café"},
		"valor":  {"5"},
		"data":   {"2024-03-01"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := ts.do(req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestEditAndUpdateRecord(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/ui/registros/2/editar", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="Mercado"`)
	assert.Contains(t, rr.Body.String(), `value="30.00"`)

	rr = ts.do(htmxForm(http.MethodPut, "/registros/2", url.Values{
		"titulo": {"Feira"},
		"valor":  {"45"},
		"tipo":   {core.TipoSaida},
		"data":   {"2024-03-05"},
	}))
	require.Equal(t, http.StatusOK, rr.Code)

	rec, err := ts.repo.GetRecord(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Feira", rec.Titulo)
	assert.True(t, rec.Valor.Decimal.Equal(decimal.NewFromInt(45)))

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/ui/registros/99/editar", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteRecord(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(htmxForm(http.MethodDelete, "/registros/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "registro:deleted")
	assert.Equal(t, 1, ts.repo.Len())

	rr = ts.do(htmxForm(http.MethodDelete, "/registros/1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(htmxForm(http.MethodDelete, "/registros/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/registros/export.csv?pessoa=5511984119222", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, contentTypeCSV, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "registros-2024-03-06.csv")
	assert.Contains(t, rr.Body.String(), "Salário")
	assert.NotContains(t, rr.Body.String(), "Mercado")
	assert.Equal(t, int64(1), ts.appMetrics.exports.Load())
}

func TestReportChart(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/relatorio", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "04/03")
	assert.Contains(t, body, "05/03")
	assert.Contains(t, body, core.Tani.Color)

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/ui/relatorio?agrupar=categoria", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hsl(0, 70%, 60%)")
	assert.Contains(t, rr.Body.String(), "Alimentação")
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `registros_writes_total{op="create"} 0`)
	assert.Contains(t, body, "cache_misses_total")
}

func TestSessionRequired(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, authPath, rr.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/ui/registros", nil)
	req.Header.Set("HX-Request", "true")
	rr = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, authPath, rr.Header().Get("HX-Redirect"))

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/auth", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/auth/entrar"`)
}

func TestSignUpSignInAndOut(t *testing.T) {
	ts := newTestServer(t, true)

	form := url.Values{"email": {"ana@example.com"}, "senha": {"segredo1"}, "confirmar": {"segredo1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/cadastrar", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := ts.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MsgSignUpOK)

	req = httptest.NewRequest(http.MethodPost, "/auth/entrar", strings.NewReader(url.Values{
		"email": {"ana@example.com"}, "senha": {"errada"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MsgInvalidLogin)

	req = httptest.NewRequest(http.MethodPost, "/auth/entrar", strings.NewReader(url.Values{
		"email": {"ana@example.com"}, "senha": {"segredo1"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = ts.do(req)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session)
	rr = ts.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ana@example.com")

	req = httptest.NewRequest(http.MethodGet, "/auth/sair", nil)
	req.AddCookie(session)
	rr = ts.do(req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	cleared := rr.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestSignUpPasswordMismatch(t *testing.T) {
	ts := newTestServer(t, true)

	form := url.Values{"email": {"ana@example.com"}, "senha": {"segredo1"}, "confirmar": {"outra"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/cadastrar", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := ts.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), msgPasswordMismatch)
}

func TestAuthRoutesAbsentWithoutService(t *testing.T) {
	repo := memory.New()
	srv, err := NewServer(":0", Deps{Records: services.NewRecordService(repo, nil, nil)}, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func apiRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAPI_RequiresBearer(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do(apiRequest(http.MethodGet, "/api/v1/registros", "", ""))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var e apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	assert.Equal(t, msgUnauthorized, e.Error)

	_, err := ts.auth.SignUp(context.Background(), "api@example.com", "segredo1")
	require.NoError(t, err)

	rr = ts.do(apiRequest(http.MethodPost, "/api/v1/auth/signin", `{"email":"api@example.com","password":"segredo1"}`, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var signin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &signin))
	require.NotEmpty(t, signin.Token)

	rr = ts.do(apiRequest(http.MethodGet, "/api/v1/registros?ordem=asc", "", signin.Token))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Registros []core.Record `json:"registros"`
		Count     int           `json:"count"`
		Total     string        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "70", list.Total)
	assert.Equal(t, "Salário", list.Registros[0].Titulo)
}

func TestAPI_SignInKeepsPasswordSpaces(t *testing.T) {
	ts := newTestServer(t, true)

	form := url.Values{"email": {"esp@example.com"}, "senha": {" segredo1 "}, "confirmar": {" segredo1 "}}
	req := httptest.NewRequest(http.MethodPost, "/auth/cadastrar", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := ts.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MsgSignUpOK)

	rr = ts.do(apiRequest(http.MethodPost, "/api/v1/auth/signin", `{"email":"esp@example.com","password":" segredo1 "}`, ""))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(apiRequest(http.MethodPost, "/api/v1/auth/signin", `{"email":"esp@example.com","senha":"segredo1"}`, ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPI_RecordLifecycle(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(apiRequest(http.MethodPost, "/api/v1/registros", `{"titulo":"Luz"}`, ""))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var e apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	assert.Contains(t, e.Fields, "valor")

	rr = ts.do(apiRequest(http.MethodPost, "/api/v1/registros",
		`{"titulo":"Luz","valor":"89.90","tipo":"Saída","data":"2024-03-06","celular":5511911407528}`, ""))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created core.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "/api/v1/registros/3", rr.Header().Get("Location"))
	require.NotNil(t, created.Celular)
	assert.Equal(t, core.Fla.Celular, *created.Celular)

	rr = ts.do(apiRequest(http.MethodPut, "/api/v1/registros/3",
		`{"titulo":"Luz","valor":"90","tipo":"Saída","data":"2024-03-06"}`, ""))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(apiRequest(http.MethodGet, "/api/v1/registros/3", "", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"valor":"90"`)

	rr = ts.do(apiRequest(http.MethodDelete, "/api/v1/registros/3", "", ""))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(apiRequest(http.MethodGet, "/api/v1/registros/3", "", ""))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_Report(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(apiRequest(http.MethodGet, "/api/v1/relatorio?agrupar=categoria", "", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var rep struct {
		Buckets []struct {
			Label string `json:"label"`
			Total string `json:"total"`
		} `json:"buckets"`
		Records int    `json:"records"`
		GroupBy string `json:"group_by"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	require.Len(t, rep.Buckets, 2)
	assert.Equal(t, "04/03", rep.Buckets[0].Label)
	assert.Equal(t, "100", rep.Buckets[0].Total)
	assert.Equal(t, 2, rep.Records)
	assert.Equal(t, GroupByCategory, rep.GroupBy)

	rr = ts.do(apiRequest(http.MethodGet, "/api/v1/relatorio?periodo=ano", "", ""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
