package detective

import "time"

// Defect is a single flagged anomaly in an analyzed image.
type Defect struct {
	DefectType  string  `json:"defect_type"`
	Confidence  float64 `json:"confidence"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
}

// AnalysisResult is one completed analysis as returned by the detection
// service. History entries are full results, newest first.
type AnalysisResult struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	UploadTime       time.Time `json:"upload_time"`
	TotalDefects     int       `json:"total_defects"`
	DefectsFound     []Defect  `json:"defects_found"`
	AnalysisComplete bool      `json:"analysis_complete"`
	ImageBase64      string    `json:"image_base64,omitempty"`
}

// AnalyzeResponse is the envelope returned by POST /api/analyze.
type AnalyzeResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Analysis *AnalysisResult `json:"analysis"`
}
