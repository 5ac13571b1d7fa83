package detective

import "strings"

// Severity levels reported by the detection service. Matching is
// case-insensitive and total: anything unrecognized renders neutral.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

type severityStyle struct {
	Class string
	Icon  string
}

var severityStyles = map[string]severityStyle{
	SeverityHigh:   {Class: "severity-high", Icon: "x"},
	SeverityMedium: {Class: "severity-medium", Icon: "warning"},
	SeverityLow:    {Class: "severity-low", Icon: "eye"},
}

var severityDefault = severityStyle{Class: "severity-neutral", Icon: "check"}

// SeverityClass maps a severity label to its badge CSS class.
func SeverityClass(severity string) string {
	return lookupSeverity(severity).Class
}

// SeverityIcon maps a severity label to its icon name.
func SeverityIcon(severity string) string {
	return lookupSeverity(severity).Icon
}

func lookupSeverity(severity string) severityStyle {
	if style, ok := severityStyles[strings.ToLower(strings.TrimSpace(severity))]; ok {
		return style
	}
	return severityDefault
}
