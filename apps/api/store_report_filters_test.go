package main

import (
	"strings"
	"testing"

	"cityreports/libs/reportview"
)

func TestBuildReportFilters(t *testing.T) {
	tests := []struct {
		name      string
		criteria  reportview.FilterCriteria
		wantParts []string
		wantArgs  []any
	}{
		{
			name:      "No filters",
			criteria:  reportview.FilterCriteria{SearchText: "pothole"},
			wantParts: []string{},
			wantArgs:  []any{},
		},
		{
			name:     "Status synonyms and issue type",
			criteria: reportview.FilterCriteria{Status: "progress", IssueType: "Streetlight"},
			wantParts: []string{
				"LOWER(TRIM(reports.status)) IN ($1, $2, $3)",
				"LOWER(TRIM(reports.issue_type)) = LOWER($4)",
			},
			wantArgs: []any{"in-progress", "in_progress", "progress", "Streetlight"},
		},
		{
			name:     "Padded input compares trimmed columns",
			criteria: reportview.FilterCriteria{Status: " progress ", IssueType: " Pothole "},
			wantParts: []string{
				"LOWER(TRIM(reports.status)) IN ($1, $2, $3)",
				"LOWER(TRIM(reports.issue_type)) = LOWER($4)",
			},
			wantArgs: []any{"in-progress", "in_progress", "progress", "Pothole"},
		},
		{
			name:     "Unknown status passes through",
			criteria: reportview.FilterCriteria{Status: "Escalated"},
			wantParts: []string{
				"LOWER(TRIM(reports.status)) IN ($1)",
			},
			wantArgs: []any{"escalated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whereClause, args := buildReportFilters(tt.criteria)
			if len(tt.wantParts) == 0 && whereClause != "" {
				t.Fatalf("expected empty where clause, got %q", whereClause)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(whereClause, part) {
					t.Fatalf("where clause missing %q in %q", part, whereClause)
				}
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args length mismatch: got %d want %d", len(args), len(tt.wantArgs))
			}
			for i := range tt.wantArgs {
				if args[i] != tt.wantArgs[i] {
					t.Fatalf("arg %d mismatch: got %v want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}
