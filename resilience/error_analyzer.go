package resilience

import (
	"time"
)

// ErrorAnalysis summarizes the recent failure pattern of one service.
type ErrorAnalysis struct {
	Service        string         `json:"service"`
	Severity       string         `json:"severity"`
	TotalFailures  int            `json:"total_failures"`
	RecentFailures int            `json:"recent_failures"`
	ErrorKinds     map[string]int `json:"error_kinds"`
	Recommendation string         `json:"recommendation"`
}

// ErrorAnalyzer grades failure histories into severities so operators can
// prioritize which source integration to look at first.
type ErrorAnalyzer struct {
	recentWindow time.Duration
}

// NewErrorAnalyzer creates an analyzer with a one hour recency window.
func NewErrorAnalyzer() *ErrorAnalyzer {
	return &ErrorAnalyzer{recentWindow: time.Hour}
}

// Analyze grades the failure records for a service. Only failures inside
// the recency window count toward severity.
func (a *ErrorAnalyzer) Analyze(service string, history []FailureRecord) ErrorAnalysis {
	cutoff := time.Now().Add(-a.recentWindow)

	recent := 0
	kinds := make(map[string]int)
	for _, record := range history {
		kinds[record.ErrorKind]++
		if record.Timestamp.After(cutoff) {
			recent++
		}
	}

	severity, recommendation := grade(recent)
	return ErrorAnalysis{
		Service:        service,
		Severity:       severity,
		TotalFailures:  len(history),
		RecentFailures: recent,
		ErrorKinds:     kinds,
		Recommendation: recommendation,
	}
}

func grade(recentFailures int) (string, string) {
	switch {
	case recentFailures > 10:
		return "critical", "Tjänsten har allvarliga problem. Kontrollera källan och överväg att stänga av den tillfälligt."
	case recentFailures > 5:
		return "high", "Tjänsten har återkommande fel. Undersök nätverksanslutning och API-nycklar."
	case recentFailures > 2:
		return "medium", "Tjänsten har sporadiska fel. Övervaka utvecklingen."
	default:
		return "low", "Tjänsten fungerar normalt."
	}
}
