package main

import (
	"fmt"
	"strings"

	"cityreports/libs/reportview"
)

// buildReportFilters narrows the SQL listing by status and issue type. The result is a
// superset of what the view shows; every predicate still runs in the controller.
func buildReportFilters(criteria reportview.FilterCriteria) (string, []any) {
	whereClause := ""
	args := make([]any, 0)
	argIndex := 1

	if status := strings.TrimSpace(criteria.Status); status != "" {
		aliases := reportview.StatusAliases(reportview.NormalizeStatus(status))
		placeholders := make([]string, 0, len(aliases))
		for _, alias := range aliases {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, strings.ToLower(alias))
			argIndex++
		}
		whereClause += fmt.Sprintf(" AND LOWER(TRIM(reports.status)) IN (%s)", strings.Join(placeholders, ", "))
	}
	if issueType := strings.TrimSpace(criteria.IssueType); issueType != "" {
		whereClause += fmt.Sprintf(" AND LOWER(TRIM(reports.issue_type)) = LOWER($%d)", argIndex)
		args = append(args, issueType)
		argIndex++
	}

	return whereClause, args
}
