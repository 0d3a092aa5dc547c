package reportview

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietNormalizer() Normalizer {
	return Normalizer{Zone: time.UTC, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNormalizeResolvesFieldAliases(t *testing.T) {
	raw := RawReport{
		"_id":         "65a1f0",
		"category":    "Pothole",
		"description": "Deep hole near the bus stop",
		"status":      "progress",
		"location":    "52.3702, 4.8952",
		"district":    "Centrum",
		"createdAt":   "2024-01-10T08:00:00Z",
		"count":       "4",
		"reporterId":  "user-9",
	}

	report, err := quietNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "65a1f0", report.ID)
	assert.Equal(t, "Pothole", report.IssueType)
	assert.Equal(t, "pothole", report.IssueTypeKey())
	assert.Equal(t, StatusInProgress, report.Status)
	require.NotNil(t, report.Location)
	assert.InDelta(t, 52.3702, report.Location.Lat, 1e-9)
	assert.InDelta(t, 4.8952, report.Location.Lng, 1e-9)
	assert.Nil(t, report.Address)
	assert.Equal(t, "Centrum", report.Label())
	assert.Equal(t, 4, report.ReportCount)
	require.NotNil(t, report.ReporterID)
	assert.Equal(t, "user-9", *report.ReporterID)
	assert.True(t, report.CreatedAt.Equal(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)))
}

func TestNormalizeIssueTypePrecedence(t *testing.T) {
	report, err := quietNormalizer().Normalize(RawReport{"id": "1", "issueType": "Graffiti", "type": "Litter", "category": "Other"})
	require.NoError(t, err)
	assert.Equal(t, "Graffiti", report.IssueType)

	report, err = quietNormalizer().Normalize(RawReport{"id": "2", "type": "Litter", "category": "Other"})
	require.NoError(t, err)
	assert.Equal(t, "Litter", report.IssueType)
}

func TestNormalizeLocationShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  RawReport
		want *Location
	}{
		{name: "object", raw: RawReport{"id": "a", "location": map[string]any{"lat": 1.5, "lng": 2.5}}, want: &Location{Lat: 1.5, Lng: 2.5}},
		{name: "object with string numbers", raw: RawReport{"id": "a", "location": map[string]any{"lat": "1.5", "lng": "2.5"}}, want: &Location{Lat: 1.5, Lng: 2.5}},
		{name: "latitude longitude keys", raw: RawReport{"id": "a", "location": map[string]any{"latitude": 1.5, "longitude": 2.5}}, want: &Location{Lat: 1.5, Lng: 2.5}},
		{name: "geojson point", raw: RawReport{"id": "a", "location": map[string]any{"type": "Point", "coordinates": []any{2.5, 1.5}}}, want: &Location{Lat: 1.5, Lng: 2.5}},
		{name: "string", raw: RawReport{"id": "a", "location": "1.5,2.5"}, want: &Location{Lat: 1.5, Lng: 2.5}},
		{name: "top level fields", raw: RawReport{"id": "a", "lat": 1.5, "lng": 2.5}, want: &Location{Lat: 1.5, Lng: 2.5}},
		{name: "absent", raw: RawReport{"id": "a"}, want: nil},
		{name: "garbage string", raw: RawReport{"id": "a", "location": "somewhere downtown"}, want: nil},
		{name: "half a pair", raw: RawReport{"id": "a", "location": "1.5,"}, want: nil},
		{name: "NaN", raw: RawReport{"id": "a", "location": "NaN,2"}, want: nil},
		{name: "out of range", raw: RawReport{"id": "a", "location": map[string]any{"lat": 95.0, "lng": 2.0}}, want: nil},
		{name: "missing lng", raw: RawReport{"id": "a", "location": map[string]any{"lat": 1.0}}, want: nil},
		{name: "wrong type", raw: RawReport{"id": "a", "location": 42}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := quietNormalizer().Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Location)
		})
	}
}

func TestNormalizeCreatedAtFormats(t *testing.T) {
	want := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{name: "rfc3339", value: "2024-01-10T08:00:00Z", want: want},
		{name: "rfc3339 with millis", value: "2024-01-10T08:00:00.000Z", want: want},
		{name: "offset", value: "2024-01-10T09:00:00+01:00", want: want},
		{name: "zone-less minutes", value: "2024-01-10T08:00", want: want},
		{name: "space separated", value: "2024-01-10 08:00:00", want: want},
		{name: "date only", value: "2024-01-10", want: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{name: "time value", value: want, want: want},
		{name: "epoch millis", value: float64(want.UnixMilli()), want: want},
		{name: "epoch seconds", value: float64(want.Unix()), want: want},
		{name: "garbage", value: "yesterday", want: time.Time{}},
		{name: "missing", value: nil, want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := quietNormalizer().Normalize(RawReport{"id": "x", "createdAt": tt.value})
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(report.CreatedAt), "got %v want %v", report.CreatedAt, tt.want)
		})
	}
}

func TestNormalizeMissingIDIsAnError(t *testing.T) {
	_, err := quietNormalizer().Normalize(RawReport{"description": "no id here"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestNormalizeNumericID(t *testing.T) {
	report, err := quietNormalizer().Normalize(RawReport{"id": float64(1234567)})
	require.NoError(t, err)
	assert.Equal(t, "1234567", report.ID)
}

func TestNormalizeAllDropsUnusableRecords(t *testing.T) {
	raws := []RawReport{
		{"id": "1", "status": "new"},
		{"description": "orphan"},
		{"id": "2", "status": "pending"},
		{"id": "1", "status": "resolved"},
	}

	reports := quietNormalizer().NormalizeAll(raws)
	require.Len(t, reports, 2)
	assert.Equal(t, "1", reports[0].ID)
	assert.Equal(t, StatusNew, reports[0].Status)
	assert.Equal(t, "2", reports[1].ID)
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{raw: "new", want: StatusNew},
		{raw: "Resolved", want: StatusResolved},
		{raw: " progress ", want: StatusInProgress},
		{raw: "in_progress", want: StatusInProgress},
		{raw: "in-progress", want: StatusInProgress},
		{raw: "rejected", want: Status("rejected")},
		{raw: "Escalated", want: Status("Escalated")},
		{raw: "", want: Status("")},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestAdminWriteStatusFoldsRejectedIntoClosed(t *testing.T) {
	if got := AdminWriteStatus("Rejected"); got != StatusClosed {
		t.Fatalf("expected closed, got %q", got)
	}
	if got := AdminWriteStatus("progress"); got != StatusInProgress {
		t.Fatalf("expected in-progress, got %q", got)
	}
}

func TestStatusAliases(t *testing.T) {
	assert.Equal(t, []string{"in-progress", "in_progress", "progress"}, StatusAliases(StatusInProgress))
	assert.Equal(t, []string{"resolved"}, StatusAliases(StatusResolved))
}

func TestDecodeListing(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
		wantErr bool
	}{
		{name: "bare array", body: `[{"_id":"a"},{"id":7}]`, wantIDs: []string{"a", "7"}},
		{name: "envelope", body: `{"data":[{"id":"b"}],"total":1}`, wantIDs: []string{"b"}},
		{name: "empty envelope", body: `{"data":[]}`, wantIDs: []string{}},
		{name: "envelope without data", body: `{"items":[]}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := DecodeListing([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(raws))
			for _, report := range quietNormalizer().NormalizeAll(raws) {
				ids = append(ids, report.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
