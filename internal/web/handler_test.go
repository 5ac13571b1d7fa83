package web_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"defect-detective-web/internal/shared/config"
	"defect-detective-web/internal/shared/server"
)

func newTestRouter(t *testing.T, backendURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router, err := server.NewRouter(config.Config{
		Port:                  "0",
		BackendURL:            backendURL,
		CORSAllowOrigin:       []string{"http://localhost:8080"},
		HistoryLimit:          10,
		AnalyzeTimeoutSeconds: 5,
		Env:                   "dev",
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router
}

func multipartImage(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestAnalyzeRejectsNonImageWithoutBackendCall(t *testing.T) {
	var backendCalls atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalls.Add(1)
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	body, contentType := multipartImage(t, "notes.txt", "text/plain", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Please select a valid image file (JPG, PNG, BMP)") {
		t.Fatalf("expected invalid image message in page")
	}
	if backendCalls.Load() != 0 {
		t.Fatalf("expected no backend call, got %d", backendCalls.Load())
	}
}

func TestAnalyzeRequiresFileWithoutBackendCall(t *testing.T) {
	var backendCalls atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalls.Add(1)
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Please select an image first") {
		t.Fatalf("expected no-file message in page")
	}
	if backendCalls.Load() != 0 {
		t.Fatalf("expected no backend call, got %d", backendCalls.Load())
	}
}

func TestAnalyzeRendersDefectsWithSeverityStyles(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "Analysis complete. Found 2 defects.",
			"analysis": {
				"id": "a-1",
				"filename": "widget.png",
				"total_defects": 2,
				"defects_found": [
					{"defect_type": "Cold Joint", "confidence": 92, "severity": "HIGH", "description": "Incomplete weld penetration"},
					{"defect_type": "Foreign Material", "confidence": 86, "severity": "medium", "description": "Metallic debris embedded"}
				],
				"analysis_complete": true
			}
		}`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	body, contentType := multipartImage(t, "widget.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	page := resp.Body.String()
	for _, want := range []string{
		"Cold Joint",
		"Foreign Material",
		"severity-high",
		"severity-medium",
		"Analysis complete. Found 2 defects.",
		"92%",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
	if strings.Contains(page, "banner-error") {
		t.Fatalf("expected no error banner on success")
	}
}

func TestAnalyzeShowsBackendDetailInBanner(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"detail": "file too large"}`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	body, contentType := multipartImage(t, "widget.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "file too large") {
		t.Fatalf("expected backend detail in banner")
	}
}

func TestAnalyzeFallsBackToGenericErrorWhenBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // connection refused

	router := newTestRouter(t, backend.URL)

	body, contentType := multipartImage(t, "widget.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Analysis failed. Please try again.") {
		t.Fatalf("expected generic analyze error")
	}
}

func TestHistoryTabRendersCardsInOrder(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/history" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "a-3", "filename": "newest.png", "total_defects": 2, "defects_found": [], "analysis_complete": true},
			{"id": "a-2", "filename": "middle.png", "total_defects": 0, "defects_found": [], "analysis_complete": true},
			{"id": "a-1", "filename": "oldest.png", "total_defects": 1, "defects_found": [], "analysis_complete": true}
		]`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/?tab=history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	page := resp.Body.String()
	if got := strings.Count(page, "history-card"); got != 3 {
		t.Fatalf("expected 3 history cards, got %d", got)
	}
	newest := strings.Index(page, "newest.png")
	middle := strings.Index(page, "middle.png")
	oldest := strings.Index(page, "oldest.png")
	if newest < 0 || middle < 0 || oldest < 0 || !(newest < middle && middle < oldest) {
		t.Fatalf("expected cards in response order, got positions %d %d %d", newest, middle, oldest)
	}
}

func TestHistoryTabEmptyShowsPlaceholder(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/?tab=history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "No Analysis History") {
		t.Fatalf("expected empty history placeholder")
	}
}

func TestHistoryTabFailureShowsGenericError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/?tab=history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Failed to load analysis history") {
		t.Fatalf("expected generic history error")
	}
}

func TestHistoryDetailPage(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analysis/a-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "a-1", "filename": "widget.png", "total_defects": 1, "defects_found": [{"defect_type": "Crack", "confidence": 77, "severity": "low", "description": "Hairline crack"}], "analysis_complete": true}`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/history/a-1", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	page := resp.Body.String()
	for _, want := range []string{"widget.png", "Crack", "severity-low"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected detail page to contain %q", want)
		}
	}
}

func TestHistoryDetailNotFound(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Analysis not found"}`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/history/missing", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Analysis not found") {
		t.Fatalf("expected not-found message")
	}
}

func TestTabsRenderPlaceholdersAndFallback(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	for _, tab := range []string{"dashboard", "settings"} {
		req := httptest.NewRequest(http.MethodGet, "/?tab="+tab, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("tab %s: expected 200, got %d", tab, resp.Code)
		}
		if !strings.Contains(resp.Body.String(), "Coming Soon") {
			t.Fatalf("tab %s: expected Coming Soon placeholder", tab)
		}
	}

	// Unknown tab falls back to the analysis view.
	req := httptest.NewRequest(http.MethodGet, "/?tab=bogus", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Upload Image for Analysis") {
		t.Fatalf("expected analysis view for unknown tab")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"ok":true`) {
		t.Fatalf("healthz: unexpected body %q", resp.Body.String())
	}

	reqMetrics := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	respMetrics := httptest.NewRecorder()
	router.ServeHTTP(respMetrics, reqMetrics)
	if respMetrics.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", respMetrics.Code)
	}
	if !strings.Contains(respMetrics.Body.String(), "analyze_started_total") {
		t.Fatalf("metrics: expected analyze counters")
	}
}
