package web

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"defect-detective-web/internal/detective"
	"defect-detective-web/internal/shared/metrics"
	"defect-detective-web/internal/shared/telemetry"
	"defect-detective-web/internal/shared/util"
)

const maxUploadSize = 10 << 20 // 10MB

// User-facing error strings. The validation messages are part of the UI
// contract and rendered verbatim.
const (
	msgInvalidImage   = "Please select a valid image file (JPG, PNG, BMP)"
	msgNoFileSelected = "Please select an image first"
	msgAnalyzeFailed  = "Analysis failed. Please try again."
	msgHistoryFailed  = "Failed to load analysis history"
	msgNotFound       = "Analysis not found"
)

const (
	tabDashboard = "dashboard"
	tabAnalysis  = "analysis"
	tabHistory   = "history"
	tabSettings  = "settings"
)

// Handler renders the UI and proxies uploads to the detection service.
type Handler struct {
	Client       *detective.Client
	HistoryLimit int
}

// NewHandler constructs a Handler.
func NewHandler(client *detective.Client, historyLimit int) *Handler {
	return &Handler{Client: client, HistoryLimit: historyLimit}
}

// RegisterRoutes attaches UI routes, templates and static assets.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(Templates())

	staticRoot, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.StaticFS("/static", http.FS(staticRoot))

	r.GET("/", h.index)
	r.POST("/analyze", h.analyze)
	r.GET("/history/:id", h.historyDetail)
}

func (h *Handler) index(c *gin.Context) {
	switch c.DefaultQuery("tab", tabAnalysis) {
	case tabHistory:
		h.historyPage(c)
	case tabDashboard:
		c.HTML(http.StatusOK, "coming-soon", newPage(tabDashboard))
	case tabSettings:
		c.HTML(http.StatusOK, "coming-soon", newPage(tabSettings))
	default:
		// Unknown tabs fall back to the analysis view.
		c.HTML(http.StatusOK, "analysis", newPage(tabAnalysis))
	}
}

func (h *Handler) analyze(c *gin.Context) {
	page := newPage(tabAnalysis)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.HTML(http.StatusBadRequest, "analysis", page.setError(msgNoFileSelected))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.HTML(http.StatusBadRequest, "analysis", page.setError(msgInvalidImage))
		return
	}

	filename, err := util.SanitizeFileName(fileHeader.Filename)
	if err != nil {
		c.HTML(http.StatusBadRequest, "analysis", page.setError(msgInvalidImage))
		return
	}
	c.Set("uploadFilename", filename)

	file, err := fileHeader.Open()
	if err != nil {
		c.HTML(http.StatusBadRequest, "analysis", page.setError(msgAnalyzeFailed))
		return
	}
	defer file.Close()

	metrics.IncAnalyzeStarted()
	started := metrics.NowMillis()
	envelope, err := h.Client.Analyze(c.Request.Context(), filename, contentType, file)
	metrics.ObserveAnalyzeDurationMs(metrics.NowMillis() - started)
	if err != nil {
		metrics.IncAnalyzeFailed()
		status, msg := remoteFailure(err, msgAnalyzeFailed)
		telemetry.Error("analyze.failed", map[string]any{
			"request_id": c.GetString("requestId"),
			"filename":   filename,
			"err":        err.Error(),
		})
		c.HTML(status, "analysis", page.setError(msg))
		return
	}
	metrics.IncAnalyzeCompleted()

	c.Set("analysisId", envelope.Analysis.ID)
	c.Set("totalDefects", envelope.Analysis.TotalDefects)
	c.HTML(http.StatusOK, "analysis", page.setResult(envelope.Analysis, envelope.Message))
}

func (h *Handler) historyPage(c *gin.Context) {
	page := newPage(tabHistory)

	metrics.IncHistoryFetch()
	history, err := h.Client.History(c.Request.Context(), h.HistoryLimit)
	if err != nil {
		metrics.IncHistoryFailed()
		telemetry.Error("history.failed", map[string]any{
			"request_id": c.GetString("requestId"),
			"err":        err.Error(),
		})
		status, _ := remoteFailure(err, msgHistoryFailed)
		c.HTML(status, "history", page.setError(msgHistoryFailed))
		return
	}

	page.History = history
	c.HTML(http.StatusOK, "history", page)
}

func (h *Handler) historyDetail(c *gin.Context) {
	page := newPage(tabHistory)

	result, err := h.Client.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		var apiErr *detective.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			c.HTML(http.StatusNotFound, "history", page.setError(msgNotFound))
			return
		}
		status, msg := remoteFailure(err, msgHistoryFailed)
		c.HTML(status, "history", page.setError(msg))
		return
	}

	page.Detail = &result
	c.HTML(http.StatusOK, "detail", page)
}

// remoteFailure maps a client error to a response status and banner text.
// A backend-provided detail string wins over the generic fallback.
func remoteFailure(err error, fallback string) (int, string) {
	var apiErr *detective.APIError
	if errors.As(err, &apiErr) {
		msg := fallback
		if apiErr.Detail != "" {
			msg = apiErr.Detail
		}
		return apiErr.StatusCode, msg
	}
	return http.StatusBadGateway, fallback
}
