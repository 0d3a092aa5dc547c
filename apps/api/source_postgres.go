package main

import (
	"context"
	"database/sql"
	"fmt"

	"cityreports/libs/reportview"
)

// PostgresSource reads the listing straight from the reports table.
type PostgresSource struct {
	DB    *sql.DB
	Limit int
}

func (s *PostgresSource) FetchReports(ctx context.Context, criteria reportview.FilterCriteria) ([]reportview.RawReport, error) {
	query, args := buildReportSourceQuery(criteria, s.Limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	raws := []reportview.RawReport{}
	for rows.Next() {
		var id string
		var issueType, title, description, status sql.NullString
		var address, district, reporterID sql.NullString
		var lat, lng sql.NullFloat64
		var createdAt sql.NullTime
		var reportCount sql.NullInt64

		err := rows.Scan(
			&id, &issueType, &title, &description, &status,
			&lat, &lng, &address, &district, &createdAt,
			&reportCount, &reporterID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}

		raw := reportview.RawReport{"id": id}
		setNullString(raw, "issueType", issueType)
		setNullString(raw, "title", title)
		setNullString(raw, "description", description)
		setNullString(raw, "status", status)
		setNullString(raw, "address", address)
		setNullString(raw, "district", district)
		setNullString(raw, "reporterId", reporterID)
		if lat.Valid && lng.Valid {
			raw["lat"] = lat.Float64
			raw["lng"] = lng.Float64
		}
		if createdAt.Valid {
			raw["createdAt"] = createdAt.Time
		}
		if reportCount.Valid {
			raw["reportCount"] = reportCount.Int64
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return raws, nil
}

func buildReportSourceQuery(criteria reportview.FilterCriteria, limit int) (string, []any) {
	query := `
		SELECT
			reports.id::text, reports.issue_type, reports.title, reports.description, reports.status,
			reports.lat, reports.lng, reports.address, reports.district, reports.created_at,
			reports.report_count, reports.reporter_id::text
		FROM reports
		WHERE 1=1
	`
	whereClause, args := buildReportFilters(criteria)
	query += whereClause
	argIndex := len(args) + 1

	// Backend order; the view applies its own sort.
	query += " ORDER BY reports.created_at DESC NULLS LAST, reports.id DESC"

	if limit < 1 {
		limit = defaultFetchLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)

	return query, args
}

func setNullString(raw reportview.RawReport, key string, value sql.NullString) {
	if value.Valid {
		raw[key] = value.String
	}
}
