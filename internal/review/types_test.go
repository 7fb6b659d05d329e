package review

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 3},
		{Severity("unknown"), 0},
	}
	for _, tt := range tests {
		got := SeverityRank(tt.severity)
		if got != tt.want {
			t.Errorf("SeverityRank(%q) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"high", SeverityHigh},
		{" High ", SeverityHigh},
		{"CRITICAL", SeverityHigh},
		{"medium", SeverityMedium},
		{"major", SeverityMedium},
		{"low", SeverityLow},
		{"nit", SeverityLow},
		{"", SeverityLow},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.in); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		severity Severity
		min      string
		want     bool
	}{
		{SeverityLow, "", true},
		{SeverityHigh, "high", true},
		{SeverityHigh, "medium", true},
		{SeverityMedium, "high", false},
		{SeverityMedium, "medium", true},
		{SeverityLow, "medium", false},
		{SeverityLow, "low", true},
	}
	for _, tt := range tests {
		if got := AtLeast(tt.severity, tt.min); got != tt.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tt.severity, tt.min, got, tt.want)
		}
	}
}

func TestFilterBySeverity_KeepsAlignment(t *testing.T) {
	in := []ClusterReview{
		{ClusterName: "a", Reviews: []Finding{{Issue: "x", Severity: SeverityLow}}},
		{ClusterName: "b", Reviews: []Finding{{Issue: "y", Severity: SeverityHigh}, {Issue: "z", Severity: SeverityMedium}}},
	}
	got := FilterBySeverity(in, "medium")
	want := []ClusterReview{
		{ClusterName: "a", Reviews: []Finding{}},
		{ClusterName: "b", Reviews: []Finding{{Issue: "y", Severity: SeverityHigh}, {Issue: "z", Severity: SeverityMedium}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FilterBySeverity mismatch (-want +got):\n%s", diff)
	}
	if len(in[0].Reviews) != 1 {
		t.Error("input was modified")
	}
}

func TestCount(t *testing.T) {
	c := Count([]ClusterReview{
		{Reviews: []Finding{{Severity: SeverityHigh}, {Severity: SeverityLow}}},
		{Reviews: []Finding{{Severity: SeverityMedium}, {Severity: SeverityHigh}}},
	})
	if c != (SeverityCounts{Low: 1, Medium: 1, High: 2}) || c.Total() != 4 {
		t.Errorf("Count = %+v", c)
	}
}

func TestSortAndDeduplicate(t *testing.T) {
	in := []Finding{
		{File: "b.go", StartLine: 5, Issue: "low b", Severity: SeverityLow},
		{File: "a.go", StartLine: 9, Issue: "high a9", Severity: SeverityHigh},
		{File: "a.go", StartLine: 2, Issue: "high a2", Severity: SeverityHigh},
		{File: "a.go", StartLine: 2, Issue: "high a2 ", Severity: SeverityHigh},
	}
	got := DeduplicateFindings(in)
	SortFindings(got)
	var issues []string
	for _, f := range got {
		issues = append(issues, f.Issue)
	}
	if diff := cmp.Diff([]string{"high a2", "high a9", "low b"}, issues); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
