package cache

import (
	"fmt"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
)

// IsStale reports whether an entry predates the newest source bar.
// Pure comparison; the caller decides whether to recompute.
func IsStale(entry *Entry, sourceTrailing time.Time) bool {
	if entry == nil {
		return true
	}
	return entry.SourceTrailing.Before(sourceTrailing)
}

// ComponentIssue describes one component failing the alignment check
type ComponentIssue struct {
	Component string
	Reason    string
}

// AlignmentReport is the outcome of verifying one result against its
// source series.
type AlignmentReport struct {
	Aligned bool
	Issues  []ComponentIssue
}

// VerifyAlignment checks that every component's timestamp index is a
// subsequence of the source index. Components are reported
// individually so one bad component does not hide the rest.
func VerifyAlignment(result *contracts.IndicatorResult, source *contracts.BarSeries) AlignmentReport {
	report := AlignmentReport{Aligned: true}
	sourceTS := source.Timestamps()

	for name, series := range result.Components {
		if len(series.Timestamps) != len(series.Values) {
			report.Aligned = false
			report.Issues = append(report.Issues, ComponentIssue{
				Component: name,
				Reason:    fmt.Sprintf("%d timestamps for %d values", len(series.Timestamps), len(series.Values)),
			})
			continue
		}
		if !isSubsequence(series.Timestamps, sourceTS) {
			report.Aligned = false
			report.Issues = append(report.Issues, ComponentIssue{
				Component: name,
				Reason:    "timestamp index is not a subsequence of the source index",
			})
		}
	}
	return report
}

// isSubsequence reports whether every element of sub appears in full,
// in order.
func isSubsequence(sub, full []time.Time) bool {
	j := 0
	for _, ts := range sub {
		for j < len(full) && !full[j].Equal(ts) {
			j++
		}
		if j == len(full) {
			return false
		}
		j++
	}
	return true
}
