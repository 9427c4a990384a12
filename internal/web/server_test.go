package web

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/explorer/internal/config"
	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/metrics"
)

const pricesCSV = "Symbol,Price\nAAA,10\n\nBBB,\nCCC,5\n"

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Ingest:   config.IngestConfig{MaxFileSize: 1 << 20},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *core.Service) {
	t.Helper()
	m := metrics.New()
	svc := core.NewService(core.Options{MaxFileSize: cfg.Ingest.MaxFileSize}, m)
	t.Cleanup(svc.Close)
	return NewServer(svc, cfg, m), svc
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return do(t, s, method, path, body, map[string]string{"Content-Type": "application/json"})
}

func upload(t *testing.T, s *Server, sessionID, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return do(t, s, http.MethodPost, "/api/sessions/"+sessionID+"/upload", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
}

type viewBody struct {
	SessionID     string            `json:"sessionId"`
	State         string            `json:"state"`
	Error         string            `json:"error"`
	Headers       []string          `json:"headers"`
	Columns       []string          `json:"columns"`
	Rows          [][]any           `json:"rows"`
	RowCount      int               `json:"rowCount"`
	FilteredCount int               `json:"filteredCount"`
	Page          int               `json:"page"`
	PageSize      int               `json:"pageSize"`
	TotalPages    int               `json:"totalPages"`
	Stats         []json.RawMessage `json:"stats"`
	History       []struct {
		Query    string `json:"query"`
		Response string `json:"response"`
		Intent   string `json:"intent"`
	} `json:"history"`
	Params struct {
		SortColumn    string `json:"sortColumn"`
		SortDirection string `json:"sortDirection"`
	} `json:"params"`
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) viewBody {
	t.Helper()
	var v viewBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decodeView(t, rec)
	require.NotEmpty(t, v.SessionID)
	assert.Equal(t, "/api/sessions/"+v.SessionID, rec.Header().Get("Location"))
	return v.SessionID
}

func TestCreateAndViewSession(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decodeView(t, rec)
	assert.Equal(t, "empty", v.State)
	assert.Empty(t, v.Headers)
	assert.Equal(t, 25, v.PageSize)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestUnknownSession(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodGet, "/api/sessions/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES001", decodeError(t, rec).Code)
}

func TestUploadCSV(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)

	rec := upload(t, s, id, "prices.csv", pricesCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v := decodeView(t, rec)
	assert.Equal(t, "ready", v.State)
	assert.Equal(t, []string{"Symbol", "Price"}, v.Headers)
	assert.Equal(t, 3, v.RowCount)
	assert.Len(t, v.Stats, 2)
	require.Len(t, v.Rows, 3)
	assert.Equal(t, []any{"AAA", float64(10)}, v.Rows[0])
	assert.Equal(t, []any{"BBB", nil}, v.Rows[1])
}

func TestUploadUnsupportedExtension(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	require.Equal(t, http.StatusOK, upload(t, s, id, "prices.csv", pricesCSV).Code)

	rec := upload(t, s, id, "notes.txt", "hello")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "FMT002", e.Code)
	assert.Contains(t, e.Message, ".txt")

	v := decodeView(t, do(t, s, http.MethodGet, "/api/sessions/"+id, nil, nil))
	assert.Equal(t, "empty", v.State)
	assert.Equal(t, e.Message, v.Error)
	assert.Empty(t, v.Headers)
}

func TestUploadMalformed(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)

	rec := upload(t, s, id, "bad.csv", "a\n1,2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "FMT001", e.Code)
	assert.Contains(t, e.Message, "line 2")
}

func TestUploadWithoutFile(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/upload", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)

	rec = doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/upload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ003", decodeError(t, rec).Code)
}

func TestUploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Ingest.MaxFileSize = 16
	s, _ := newTestServer(t, cfg)
	id := createSession(t, s)

	rec := upload(t, s, id, "big.csv", "Symbol,Price\n"+strings.Repeat("AAA,1\n", 20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "READ002", decodeError(t, rec).Code)
}

func TestUploadAtSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Ingest.MaxFileSize = int64(len(pricesCSV))
	s, _ := newTestServer(t, cfg)
	id := createSession(t, s)

	rec := upload(t, s, id, "prices.csv", pricesCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeView(t, rec).RowCount)

	rec = upload(t, s, id, "prices.csv", pricesCSV+"DDD,1\n")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "READ002", decodeError(t, rec).Code)
}

func TestSampleAndQuery(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	base := "/api/sessions/" + id

	rec := doJSON(t, s, http.MethodPost, base+"/query", map[string]string{"prompt": "summary"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SES002", decodeError(t, rec).Code)

	rec = do(t, s, http.MethodPost, base+"/sample", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decodeView(t, rec)
	assert.Equal(t, 150, v.RowCount)
	assert.Len(t, v.Rows, 25)
	assert.Equal(t, 6, v.TotalPages)

	rec = doJSON(t, s, http.MethodPost, base+"/query", map[string]string{"prompt": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "QRY001", decodeError(t, rec).Code)

	rec = doJSON(t, s, http.MethodPost, base+"/query", map[string]string{"prompt": "top 5 by market cap"})
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	require.Len(t, v.History, 1)
	assert.Equal(t, "top_market_cap", v.History[0].Intent)

	rec = do(t, s, http.MethodGet, base+"/history", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "top 5 by market cap")
}

func TestViewParameterRoutes(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	base := "/api/sessions/" + id
	require.Equal(t, http.StatusOK, upload(t, s, id, "prices.csv", pricesCSV).Code)

	rec := doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"column": "Price"})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "asc", v.Params.SortDirection)
	assert.Equal(t, []any{"CCC", float64(5)}, v.Rows[0])

	rec = doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"column": "Price"})
	assert.Equal(t, "desc", decodeView(t, rec).Params.SortDirection)

	rec = doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"column": "Volume"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VIEW001", decodeError(t, rec).Code)

	rec = doJSON(t, s, http.MethodPut, base+"/search", map[string]string{"term": "bbb"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeView(t, rec).FilteredCount)

	rec = doJSON(t, s, http.MethodPost, base+"/columns/toggle", map[string]string{"column": "Symbol"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Price"}, decodeView(t, rec).Columns)

	rec = doJSON(t, s, http.MethodPut, base+"/page-size", map[string]int{"pageSize": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VIEW002", decodeError(t, rec).Code)

	rec = doJSON(t, s, http.MethodPut, base+"/page-size", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPut, base+"/page", map[string]int{"page": 9})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeView(t, rec).Page)

	rec = doJSON(t, s, http.MethodPatch, base+"/view", map[string]any{"searchTerm": "", "pageSize": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, 3, v.FilteredCount)
	assert.Equal(t, 1, v.PageSize)
	assert.Equal(t, 3, v.TotalPages)

	rec = doJSON(t, s, http.MethodPatch, base+"/view", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ003", decodeError(t, rec).Code)

	rec = do(t, s, http.MethodPost, base+"/reset", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, "empty", v.State)
	assert.Equal(t, 25, v.PageSize)
}

func TestSortDirectionRoutes(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	base := "/api/sessions/" + id
	require.Equal(t, http.StatusOK, upload(t, s, id, "prices.csv", pricesCSV).Code)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"column": "Price", "direction": "DESC"})
		require.Equal(t, http.StatusOK, rec.Code)
		v := decodeView(t, rec)
		assert.Equal(t, "desc", v.Params.SortDirection)
		assert.Equal(t, []any{"AAA", float64(10)}, v.Rows[0])
	}

	rec := doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"column": "Price", "direction": "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VIEW003", decodeError(t, rec).Code)

	rec = doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"direction": "asc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, base+"/view", map[string]any{"sortColumn": "Symbol", "sortDirection": "desc"})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "Symbol", v.Params.SortColumn)
	assert.Equal(t, "desc", v.Params.SortDirection)
	assert.Equal(t, "CCC", v.Rows[0][0])
}

func TestLargePageSizeRoute(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	base := "/api/sessions/" + id
	require.Equal(t, http.StatusOK, upload(t, s, id, "prices.csv", pricesCSV).Code)

	rec := doJSON(t, s, http.MethodPut, base+"/page-size", map[string]int{"pageSize": math.MaxInt})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, 1, v.TotalPages)
	assert.Equal(t, 1, v.Page)
	assert.Len(t, v.Rows, 3)
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	base := "/api/sessions/" + id

	rec := do(t, s, http.MethodGet, base+"/export", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	require.Equal(t, http.StatusOK, upload(t, s, id, "my prices.csv", pricesCSV).Code)
	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, base+"/sort", map[string]string{"column": "Price"}).Code)

	rec = do(t, s, http.MethodGet, base+"/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="my_prices-export.csv"`)
	assert.Equal(t, "Symbol,Price\nCCC,5\nAAA,10\nBBB,\n", rec.Body.String())
}

func TestExportName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"prices.csv", "prices-export.csv"},
		{"Q1 report.json", "Q1_report-export.csv"},
		{"sample data", "sample_data-export.csv"},
		{"", "dataset-export.csv"},
		{"../../", "dataset-export.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exportName(tt.in), tt.in)
	}
}

func TestProgressStream(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+id+"/progress", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, `"state":"empty"`)
	assert.Contains(t, body, "event: complete")
}

func TestProgressStreamWaitsForLoad(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	id := createSession(t, s)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/" + id + "/progress?wait=true")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Start the load once the stream is open.
	go func() {
		time.Sleep(50 * time.Millisecond)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/sessions/"+id+"/sample", nil)
		if r, err := http.DefaultClient.Do(req); err == nil {
			r.Body.Close()
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, `"state":"loading"`)
	assert.Contains(t, body, `"state":"ready"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "}"))
	assert.Contains(t, body, "event: complete")
}

func TestDeleteSession(t *testing.T) {
	s, svc := newTestServer(t, testConfig())
	id := createSession(t, s)

	rec := do(t, s, http.MethodDelete, "/api/sessions/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, svc.SessionCount())

	rec = do(t, s, http.MethodGet, "/api/sessions/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptsAndHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodGet, "/api/prompts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prompts map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prompts))
	assert.NotEmpty(t, prompts["prompts"])

	rec = do(t, s, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	createSession(t, s)

	rec := do(t, s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "explorer_http_requests_total")
	assert.Contains(t, body, `route="/api/sessions"`)
	assert.Contains(t, body, "explorer_session_active 1")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1, QueryLimit: 1}
	s, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil, nil).Code)
	}

	rec := do(t, s, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := newRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"k1", "k2"}
	s, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/prompts", nil, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		do(t, s, http.MethodGet, "/api/prompts", nil, map[string]string{"X-API-Key": "nope"}).Code)
	assert.Equal(t, http.StatusOK,
		do(t, s, http.MethodGet, "/api/prompts", nil, map[string]string{"X-API-Key": "k2"}).Code)

	// Health and metrics stay open.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil, nil).Code)
}
