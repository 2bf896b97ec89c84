package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replacechain/internal/core"
	"replacechain/internal/infra/persistence/memory"
	"replacechain/pkg/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newManagerRouter(t *testing.T) (*gin.Engine, *core.Manager) {
	t.Helper()
	m, err := core.NewManager(context.Background(), memory.NewStore())
	require.NoError(t, err)
	return NewRouter(m), m
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleAddReplacement(t *testing.T) {
	router, m := newManagerRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/replacements", `{"old":"A","new":"B","date":"2021-01-01"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out domain.ReplaceOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Applied)
	assert.Equal(t, "B", out.Latest)
	require.NotNil(t, out.Date)
	assert.Equal(t, "2021-01-01", out.Date.Format(time.DateOnly))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = doJSON(t, router, http.MethodPost, "/v1/replacements", `{"old":"A","new":"C","date":"2020-01-01"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.False(t, out.Applied)
	assert.Equal(t, "B", m.LatestVersion(context.Background(), "A"))
}

func TestHandleAddReplacementDefaultsToToday(t *testing.T) {
	m, err := core.NewManager(context.Background(), memory.NewStore())
	require.NoError(t, err)
	h := NewHandlers(m, nil)
	h.now = func() time.Time { return time.Date(2024, 5, 6, 13, 14, 0, 0, time.UTC) }
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), h)

	w := doJSON(t, router, http.MethodPost, "/v1/replacements", `{"old":"A","new":"B"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := m.Resolve(context.Background(), "A")
	require.NotNil(t, res.Date)
	assert.Equal(t, "2024-05-06", res.Date.Format(time.DateOnly))
}

func TestHandleAddReplacementRejects(t *testing.T) {
	router, _ := newManagerRouter(t)
	cases := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{`, "INVALID_REQUEST"},
		{"missing new", `{"old":"A"}`, "INVALID_REQUEST"},
		{"bad date", `{"old":"A","new":"B","date":"yesterday"}`, "INVALID_DATE"},
		{"blank name", `{"old":"  ","new":"B","date":"2021-01-01"}`, "EMPTY_NAME"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/replacements", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestHandleBulkLoadFormats(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
	}{
		{"csv", "text/csv", "Old Product,New Product,Date\nA,B,2021-01-01\nB,C,2022-01-01\n"},
		{"json", "application/json", `[{"old":"A","new":"B","date":"2021-01-01"},{"old":"B","new":"C","date":"2022-01-01"}]`},
		{"yaml", "application/yaml", "- old: A\n  new: B\n  date: \"2021-01-01\"\n- old: B\n  new: C\n  date: \"2022-01-01\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, m := newManagerRouter(t)
			req := httptest.NewRequest(http.MethodPost, "/v1/replacements/bulk", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var resp BulkResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, 2, resp.Processed)
			assert.Equal(t, 2, resp.Applied)
			assert.Equal(t, "C", m.LatestVersion(context.Background(), "A"))
		})
	}
}

func TestHandleBulkLoadBadBody(t *testing.T) {
	router, _ := newManagerRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/replacements/bulk", strings.NewReader("Product\nA\n"))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBulkLoadPartialFailure(t *testing.T) {
	svc := &fakeService{bulkErr: &domain.PersistError{Op: "save", Driver: domain.StorageMemory, Err: errors.New("disk full")}}
	router := NewRouter(svc)
	req := httptest.NewRequest(http.MethodPost, "/v1/replacements/bulk", strings.NewReader(`[{"old":"A","new":"B","date":"2021-01-01"}]`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp BulkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PERSIST_FAILED", resp.Code)
	assert.Equal(t, 0, resp.Processed)
	assert.Contains(t, resp.Error, "disk full")
}

func TestHandleAddReplacementPersistFailure(t *testing.T) {
	svc := &fakeService{addErr: &domain.PersistError{Op: "save", Driver: domain.StorageFile, Err: errors.New("read-only")}}
	w := doJSON(t, NewRouter(svc), http.MethodPost, "/v1/replacements", `{"old":"A","new":"B","date":"2021-01-01"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PERSIST_FAILED", resp.Code)
}

func TestHandleProductsAndLatest(t *testing.T) {
	router, m := newManagerRouter(t)
	ctx := context.Background()
	_, err := m.AddReplacement(ctx, "A", "B", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = m.AddProduct(ctx, "Z")
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	var products ProductsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Equal(t, []string{"A", "B", "Z"}, products.Products)
	assert.Equal(t, 3, products.Count)

	w = doJSON(t, router, http.MethodGet, "/v1/products/A/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res domain.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "B", res.Latest)
	assert.True(t, res.Found)

	w = doJSON(t, router, http.MethodGet, "/v1/products/Z/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	res = domain.Resolution{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Z", res.Latest)
	assert.Nil(t, res.Date)

	w = doJSON(t, router, http.MethodGet, "/v1/products/ghost/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	res = domain.Resolution{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Found)
	assert.Equal(t, "ghost", res.Latest)
}

func TestHandleLatestByQuery(t *testing.T) {
	router, m := newManagerRouter(t)
	_, err := m.AddReplacement(context.Background(), "Widget 10/20", "Widget 10/30", time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/latest?name="+url.QueryEscape("Widget 10/20"), "")
	require.Equal(t, http.StatusOK, w.Code)
	var res domain.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Found)
	assert.Equal(t, "Widget 10/30", res.Latest)
	require.NotNil(t, res.Date)
	assert.Equal(t, "2022-03-01", res.Date.Format("2006-01-02"))

	w = doJSON(t, router, http.MethodGet, "/v1/latest", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EMPTY_NAME", resp.Code)
}

func TestHandleMappings(t *testing.T) {
	router, m := newManagerRouter(t)
	_, err := m.AddReplacement(context.Background(), "A", "B", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/mappings?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "Old Product,New Product,Date\nA,B,2021-01-01\nB,B,2021-01-01\n", w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/v1/mappings", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0]["latest"])

	w = doJSON(t, router, http.MethodGet, "/v1/mappings?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthMetricsAndVars(t *testing.T) {
	router, _ := newManagerRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","products":0}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = doJSON(t, router, http.MethodGet, "/debug/vars", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "memstats")
}

func TestWithMetricsHandler(t *testing.T) {
	router := NewRouter(&fakeService{}, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("custom"))
	})), WithLogger(nil), WithAccessLog(false))
	w := doJSON(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, "custom", w.Body.String())
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := NewRouter(&fakeService{})
	req := httptest.NewRequest(http.MethodPost, "/v1/replacements", strings.NewReader(`{"old":"A","new":"B","date":"2021-01-01"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

type fakeService struct {
	mu      sync.Mutex
	addErr  error
	bulkErr error
	calls   []string
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeService) AddReplacement(_ context.Context, oldName, newName string, date time.Time) (domain.ReplaceOutcome, error) {
	f.record("add")
	if f.addErr != nil {
		return domain.ReplaceOutcome{}, f.addErr
	}
	return domain.ReplaceOutcome{
		Replacement: domain.Replacement{Old: oldName, New: newName, Date: date},
		Applied:     true,
		Latest:      newName,
		Date:        domain.DatePtr(date),
	}, nil
}

func (f *fakeService) BulkLoad(context.Context, []domain.Replacement, domain.ProgressFunc) (domain.BulkResult, error) {
	f.record("bulk")
	return domain.BulkResult{}, f.bulkErr
}

func (f *fakeService) Resolve(_ context.Context, name string) domain.Resolution {
	f.record("resolve")
	return domain.Resolution{Product: name, Latest: name}
}

func (f *fakeService) ListProducts() []string {
	f.record("list")
	return nil
}

func (f *fakeService) Mappings(context.Context, domain.ProgressFunc) []domain.Mapping {
	f.record("mappings")
	return nil
}
