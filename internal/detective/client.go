package detective

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError carries the detail string from a non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("detection service returned status %d", e.StatusCode)
}

// Client talks to the remote defect-detection service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Analyze uploads the image as multipart form data and returns the
// analysis envelope. Non-2xx responses come back as *APIError.
func (c *Client) Analyze(ctx context.Context, filename, contentType string, r io.Reader) (AnalyzeResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", &body)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("call detection service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AnalyzeResponse{}, decodeAPIError(resp)
	}

	var envelope AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("decode analyze response: %w", err)
	}
	if envelope.Analysis == nil {
		return AnalyzeResponse{}, fmt.Errorf("analyze response missing analysis")
	}
	return envelope, nil
}

// History fetches up to limit past analyses, newest first. A limit of
// zero or less defers to the backend default.
func (c *Client) History(ctx context.Context, limit int) ([]AnalysisResult, error) {
	endpoint := c.baseURL + "/api/history"
	if limit > 0 {
		endpoint += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detection service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}

	var history []AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return history, nil
}

// Get fetches a single past analysis by ID.
func (c *Client) Get(ctx context.Context, id string) (AnalysisResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/analysis/"+url.PathEscape(id), nil)
	if err != nil {
		return AnalysisResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("call detection service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AnalysisResult{}, decodeAPIError(resp)
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis response: %w", err)
	}
	return result, nil
}

// decodeAPIError extracts the FastAPI-style {"detail": "..."} body.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Detail = strings.TrimSpace(body.Detail)
	}
	return apiErr
}
