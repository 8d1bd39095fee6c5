package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/pipeline"
	"github.com/sells-group/site-audit/internal/store"
	"github.com/sells-group/site-audit/internal/store/mocks"
)

// fakeRunner records executions and returns canned results.
type fakeRunner struct {
	mu       sync.Mutex
	startErr error
	execErr  error
	executed chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{executed: make(chan string, 4)}
}

func (f *fakeRunner) Start(_ context.Context, rawURL string, maxPages int) (*model.Scan, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &model.Scan{ID: "scan-1", URL: rawURL, MaxPages: maxPages, Status: model.ScanStatusQueued}, nil
}

func (f *fakeRunner) Execute(_ context.Context, scan *model.Scan) (*model.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed <- scan.ID
	if f.execErr != nil {
		scan.Status = model.ScanStatusFailed
		scan.Error = f.execErr.Error()
		return scan, f.execErr
	}
	scan.Status = model.ScanStatusComplete
	scan.Result = &model.ScanResult{Summary: model.ScanSummary{Score: 92, Issues: []model.Issue{}, PagesScanned: 3}}
	return scan, nil
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestRouter_Health(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("Ping", mock.Anything).Return(nil).Once()
	st.On("Ping", mock.Anything).Return(errors.New("db down")).Once()
	h, _ := buildRouter(context.Background(), st, newFakeRunner(), []string{"*"})

	rr := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode(t, rr)["status"])

	rr = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_CreateScan_Async(t *testing.T) {
	runner := newFakeRunner()
	h, api := buildRouter(context.Background(), nil, runner, []string{"*"})

	rr := do(t, h, http.MethodPost, "/v1/scans", `{"url":"https://acme.com","max_pages":5}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "scan-1", body["id"])
	assert.Equal(t, "queued", body["status"])

	select {
	case id := <-runner.executed:
		assert.Equal(t, "scan-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("scan was not executed")
	}
	api.scans.Wait()
}

func TestRouter_CreateScan_Wait(t *testing.T) {
	h, _ := buildRouter(context.Background(), nil, newFakeRunner(), []string{"*"})

	rr := do(t, h, http.MethodPost, "/v1/scans?wait=true", `{"url":"https://acme.com"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	var scan model.Scan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &scan))
	assert.Equal(t, model.ScanStatusComplete, scan.Status)
	require.NotNil(t, scan.Result)
	assert.Equal(t, 92, scan.Result.Summary.Score)
}

func TestRouter_CreateScan_WaitNoPages(t *testing.T) {
	runner := newFakeRunner()
	runner.execErr = pipeline.ErrNoPages
	h, _ := buildRouter(context.Background(), nil, runner, []string{"*"})

	rr := do(t, h, http.MethodPost, "/v1/scans?wait=true", `{"url":"https://down.example"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "no pages could be crawled", decode(t, rr)["error"])
}

func TestRouter_CreateScan_WaitFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.execErr = errors.New("renderer unavailable")
	h, _ := buildRouter(context.Background(), nil, runner, []string{"*"})

	rr := do(t, h, http.MethodPost, "/v1/scans?wait=1", `{"url":"https://acme.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouter_CreateScan_BadRequests(t *testing.T) {
	runner := newFakeRunner()
	runner.startErr = pipeline.ErrInvalidURL
	h, _ := buildRouter(context.Background(), nil, runner, []string{"*"})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing url", `{"max_pages":3}`},
		{"negative budget", `{"url":"https://acme.com","max_pages":-1}`},
		{"unparseable url", `{"url":"http://"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/scans", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}
}

func TestRouter_ListScans(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("ListScans", mock.Anything, model.ScanFilter{Status: model.ScanStatusComplete, Limit: 2, Offset: 4}).
		Return([]model.Scan{{ID: "a"}, {ID: "b"}}, nil)
	h, _ := buildRouter(context.Background(), st, newFakeRunner(), []string{"*"})

	rr := do(t, h, http.MethodGet, "/v1/scans?status=complete&limit=2&offset=4", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	scans := decode(t, rr)["scans"].([]any)
	assert.Len(t, scans, 2)

	rr = do(t, h, http.MethodGet, "/v1/scans?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, h, http.MethodGet, "/v1/scans?offset=-3", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_GetScan(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("GetScan", mock.Anything, "scan-1").Return(&model.Scan{ID: "scan-1", URL: "https://acme.com/", Status: model.ScanStatusComplete,
		Result: &model.ScanResult{Summary: model.ScanSummary{Score: 70, Issues: []model.Issue{}}}}, nil)
	st.On("GetScan", mock.Anything, "missing").Return(nil, store.ErrNotFound)
	st.On("GetScan", mock.Anything, "broken").Return(nil, errors.New("disk error"))
	h, _ := buildRouter(context.Background(), st, newFakeRunner(), []string{"*"})

	rr := do(t, h, http.MethodGet, "/v1/scans/scan-1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "scan-1", decode(t, rr)["id"])

	rr = do(t, h, http.MethodGet, "/v1/scans/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/scans/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/scans/scan-1/report", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "# Site Audit: https://acme.com/"))
}

func TestRouter_Screenshot(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("GetScreenshot", mock.Anything, "scan-1").Return([]byte("RIFFwebp"), nil)
	st.On("GetScreenshot", mock.Anything, "no-shot").Return(nil, nil)
	st.On("GetScreenshot", mock.Anything, "missing").Return(nil, store.ErrNotFound)
	h, _ := buildRouter(context.Background(), st, newFakeRunner(), []string{"*"})

	rr := do(t, h, http.MethodGet, "/v1/scans/scan-1/screenshot", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/webp", rr.Header().Get("Content-Type"))
	assert.Equal(t, "RIFFwebp", rr.Body.String())

	for _, id := range []string{"no-shot", "missing"} {
		rr = do(t, h, http.MethodGet, "/v1/scans/"+id+"/screenshot", "")
		assert.Equal(t, http.StatusNotFound, rr.Code, id)
	}
}

func TestRouter_CORS(t *testing.T) {
	h, _ := buildRouter(context.Background(), nil, newFakeRunner(), []string{"https://app.example"})

	req := httptest.NewRequest(http.MethodOptions, "/v1/scans", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestDrain_CancelsAfterDeadline(t *testing.T) {
	scanCtx, cancel := context.WithCancel(context.Background())
	api := &apiServer{scanCtx: scanCtx}
	api.scans.Add(1)
	go func() {
		defer api.scans.Done()
		<-scanCtx.Done()
	}()

	ctx, stop := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer stop()
	api.drain(ctx, cancel)
	assert.Error(t, scanCtx.Err())
}

func TestIntParam(t *testing.T) {
	n, err := intParam("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = intParam("25")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = intParam("-1")
	assert.Error(t, err)
}
