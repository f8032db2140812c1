package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/memstore"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/parser"
	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/goals"
	"github.com/cp25sy5-modjot/ledger-service/internal/ledger"
	"github.com/cp25sy5-modjot/ledger-service/internal/metrics"
	"github.com/cp25sy5-modjot/ledger-service/internal/pkg/clock"
	"github.com/cp25sy5-modjot/ledger-service/internal/policy"
	"github.com/cp25sy5-modjot/ledger-service/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, expenses *memstore.Table) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if expenses == nil {
		expenses = memstore.New("Expenses")
	}
	p := policy.New(policy.DefaultConfig())
	c := clock.Fixed(time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC))
	r := ledger.New(expenses, memstore.New("Goals"), ledger.Options{})
	engine := usecase.NewEngine(usecase.Config{
		Extractor: parser.NewRulesParser(p.Classifier()),
		Policy:    p,
		Ledger:    r,
		Goals:     goals.New(r, p, c),
		Clock:     c,
	})

	reg := prometheus.NewRegistry()
	return Router(Options{
		Engine:        engine,
		AllowedActors: []string{"anna", "ben"},
		Gatherer:      reg,
		Metrics:       metrics.New(reg),
	})
}

func request(t *testing.T, r http.Handler, method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "body: %s", w.Body.String())
}

func TestAllowlist(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, actor := range []string{"", "mallory"} {
		w := request(t, r, http.MethodPost, "/v1/expenses", actor, SubmitRequest{Text: "45 Rewe"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	}

	w := request(t, r, http.MethodGet, "/v1/help", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var help HelpResponse
	decode(t, w, &help)
	assert.NotEmpty(t, help.Commands)
	assert.Contains(t, help.Categories, domain.CategoryGroceries)
}

func TestEmptyAllowlistRefusesAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", AllowlistMiddleware(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := request(t, r, http.MethodGet, "/x", "anna", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExpenseRoutes(t *testing.T) {
	r := newTestRouter(t, nil)

	w := request(t, r, http.MethodPost, "/v1/expenses", "anna", SubmitRequest{Text: "45 Rewe"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created ExpenseResponse
	decode(t, w, &created)
	assert.Equal(t, domain.CategoryGroceries, created.Data.Category)
	assert.Equal(t, "anna", created.Data.Actor)

	w = request(t, r, http.MethodPost, "/v1/expenses", "anna", SubmitRequest{Text: "hello there"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = request(t, r, http.MethodPost, "/v1/expenses", "anna", SubmitRequest{Text: "45 Rewe someday-ish 2025-13-45"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = request(t, r, http.MethodPatch, "/v1/expenses/last", "anna", EditRequest{Field: "amount", Value: "50"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var edited ExpenseResponse
	decode(t, w, &edited)
	assert.Equal(t, "50.00", edited.Data.Amount.StringFixed(2))

	w = request(t, r, http.MethodPatch, "/v1/expenses/last", "anna", EditRequest{Field: "colour", Value: "blue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var herr HTTPError
	decode(t, w, &herr)
	assert.Equal(t, string(domain.RejectUnknownField), herr.Reason)

	w = request(t, r, http.MethodPatch, "/v1/expenses/zero", "anna", EditRequest{Field: "amount", Value: "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, r, http.MethodGet, "/v1/expenses/recent?n=5", "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recent ExpenseListResponse
	decode(t, w, &recent)
	assert.Len(t, recent.Data, 1)

	w = request(t, r, http.MethodGet, "/v1/expenses/recent?n=500", "anna", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, r, http.MethodDelete, "/v1/expenses/last", "ben", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, r, http.MethodDelete, "/v1/expenses/last", "anna", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, http.MethodDelete, "/v1/expenses/last", "anna", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpensePhotoWithoutMatch(t *testing.T) {
	r := newTestRouter(t, nil)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("text", "45 Rewe"))
	part, err := mw.CreateFormFile("photo", "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/expenses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(ActorHeader, "anna")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// The offline parser never reads photos.
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGoalRoutes(t *testing.T) {
	r := newTestRouter(t, nil)

	w := request(t, r, http.MethodPost, "/v1/goals", "anna", SubmitRequest{Text: "/goal Trip to Japan 5000 by December 2026"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created GoalResponse
	decode(t, w, &created)
	id := created.Data.ID
	assert.Equal(t, domain.StatusPending, created.Data.Status)

	w = request(t, r, http.MethodPatch, "/v1/goals/"+id, "ben", EditRequest{Field: "amount", Value: "5000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(t, r, http.MethodPatch, "/v1/goals/GFFFFFFFF", "ben", EditRequest{Field: "amount", Value: "5000"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, r, http.MethodPatch, "/v1/goals/"+id, "ben", map[string]string{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, r, http.MethodPut, "/v1/goals/"+id+"/status", "anna", StatusRequest{Status: "done"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(t, r, http.MethodPut, "/v1/goals/"+id+"/status", "anna", StatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var herr HTTPError
	decode(t, w, &herr)
	assert.Equal(t, string(domain.RejectTerminal), herr.Reason)

	w = request(t, r, http.MethodDelete, "/v1/goals/"+id, "anna", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, r, http.MethodGet, "/v1/goals", "ben", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list GoalListResponse
	decode(t, w, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, id, list.Data[0].ID)

	w = request(t, r, http.MethodPost, "/v1/goals", "ben", SubmitRequest{Text: "Paint the fence"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = request(t, r, http.MethodDelete, "/v1/goals/last", "ben", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = request(t, r, http.MethodDelete, "/v1/goals/last", "ben", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	expenses := memstore.New("Expenses", []string{"when", "how much"})
	r := newTestRouter(t, expenses)

	w := request(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "request id middleware runs before the logger")

	w = request(t, r, http.MethodPost, "/v1/expenses", "anna", SubmitRequest{Text: "45 Rewe"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = request(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = request(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "/v1/expenses"), "request metrics are exported")
}

func TestHandlerFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) { Handler(c, context.DeadlineExceeded) })

	w := request(t, r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
