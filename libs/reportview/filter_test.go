package reportview

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func at(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func ids(reports []Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.ID)
	}
	return out
}

func sampleReports() []Report {
	return []Report{
		{ID: "r-100", IssueType: "Pothole", Description: "Large pothole", Status: StatusNew, CreatedAt: at("2024-01-10T08:00"), Location: &Location{Lat: 52.37, Lng: 4.89}, Address: strPtr("Damrak 1")},
		{ID: "r-101", IssueType: "Streetlight", Description: "Lamp flickers", Status: StatusInProgress, CreatedAt: at("2024-01-10T23:50"), ReportCount: 3},
		{ID: "r-102", IssueType: "pothole", Title: "Bike lane damage", Status: StatusResolved, CreatedAt: at("2024-01-11T00:05"), Location: &Location{Lat: 52.36, Lng: 4.90}},
		{ID: "r-103", IssueType: "Graffiti", Description: "Tagged wall near r-100", Status: Status("Escalated"), ReportCount: 7},
		{ID: "r-104", IssueType: "Litter", Description: "Overflowing bin", Status: StatusInProgress, CreatedAt: at("2024-02-01T12:00"), Location: &Location{Lat: 51.92, Lng: 4.48}},
	}
}

func utcCriteria() FilterCriteria {
	return FilterCriteria{Zone: time.UTC}
}

func TestFilterEmptyCriteriaKeepsEverything(t *testing.T) {
	reports := sampleReports()
	assert.Equal(t, ids(reports), ids(Filter(reports, utcCriteria())))
	assert.Empty(t, ActivePredicates(FilterCriteria{SearchText: "   ", DateMode: DateExact}))
}

func TestFilterStatusSynonym(t *testing.T) {
	normalizer := quietNormalizer()
	raws := []RawReport{
		{"id": "1", "status": "new"},
		{"id": "2", "status": "progress"},
		{"id": "3", "status": "resolved"},
		{"id": "4", "status": "progress"},
		{"id": "5", "status": "pending"},
	}
	reports := normalizer.NormalizeAll(raws)

	got := Filter(reports, utcCriteria().WithStatus("in-progress"))
	assert.Equal(t, []string{"2", "4"}, ids(got))

	got = Filter(reports, utcCriteria().WithStatus("progress"))
	assert.Equal(t, []string{"2", "4"}, ids(got))
}

func TestFilterUnknownStatusStaysFilterable(t *testing.T) {
	got := Filter(sampleReports(), utcCriteria().WithStatus("escalated"))
	assert.Equal(t, []string{"r-103"}, ids(got))
}

func TestFilterStatusIgnoresCase(t *testing.T) {
	reports := []Report{{ID: "1", Status: Status("Rejected")}, {ID: "2", Status: StatusClosed}}
	assert.Equal(t, []string{"1"}, ids(Filter(reports, utcCriteria().WithStatus("rejected"))))
}

func TestFilterExactDate(t *testing.T) {
	normalizer := quietNormalizer()
	reports := normalizer.NormalizeAll([]RawReport{
		{"id": "a", "createdAt": "2024-01-10T08:00"},
		{"id": "b", "createdAt": "2024-01-10T23:50"},
		{"id": "c", "createdAt": "2024-01-11T00:05"},
		{"id": "d"},
	})
	day, err := ParseDay("2024-01-10", time.UTC)
	require.NoError(t, err)

	got := Filter(reports, utcCriteria().WithDates(DateExact, day, time.Time{}))
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestFilterExactDateUsesZoneCalendarDay(t *testing.T) {
	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	reports := []Report{
		{ID: "late-utc", CreatedAt: time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC)},
		{ID: "early-utc", CreatedAt: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)},
	}
	day, err := ParseDay("2024-01-11", amsterdam)
	require.NoError(t, err)

	got := Filter(reports, FilterCriteria{Zone: amsterdam}.WithDates(DateExact, day, time.Time{}))
	assert.Equal(t, []string{"late-utc"}, ids(got))
}

func TestFilterDateRange(t *testing.T) {
	reports := []Report{
		{ID: "before", CreatedAt: at("2024-01-09T23:59")},
		{ID: "start", CreatedAt: at("2024-01-10T00:00")},
		{ID: "end", CreatedAt: time.Date(2024, 1, 12, 23, 59, 59, int(999*time.Millisecond), time.UTC)},
		{ID: "after", CreatedAt: at("2024-01-13T00:00")},
		{ID: "undated"},
	}
	from, _ := ParseDay("2024-01-10", time.UTC)
	to, _ := ParseDay("2024-01-12", time.UTC)

	assert.Equal(t, []string{"start", "end"}, ids(Filter(reports, utcCriteria().WithDates(DateRange, from, to))))
	assert.Equal(t, []string{"start", "end", "after"}, ids(Filter(reports, utcCriteria().WithDates(DateRange, from, time.Time{}))))
	assert.Equal(t, []string{"before", "start", "end"}, ids(Filter(reports, utcCriteria().WithDates(DateRange, time.Time{}, to))))
}

func TestFilterSearch(t *testing.T) {
	reports := sampleReports()

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "id substring", search: "R-10", want: []string{"r-100", "r-101", "r-102", "r-103", "r-104"}},
		{name: "exact id", search: "r-102", want: []string{"r-102"}},
		{name: "id mentioned in description", search: "r-100", want: []string{"r-100", "r-103"}},
		{name: "issue type", search: "POTHOLE", want: []string{"r-100", "r-102"}},
		{name: "title", search: "bike lane", want: []string{"r-102"}},
		{name: "address", search: "damrak", want: []string{"r-100"}},
		{name: "no match", search: "volcano", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(reports, utcCriteria().WithSearch(tt.search))))
		})
	}
}

func TestFilterIssueTypeIsCaseInsensitive(t *testing.T) {
	got := Filter(sampleReports(), utcCriteria().WithIssueType("POTHOLE"))
	assert.Equal(t, []string{"r-100", "r-102"}, ids(got))
}

func TestFilterArea(t *testing.T) {
	amsterdam := &Bounds{South: 52.3, West: 4.8, North: 52.4, East: 5.0}
	got := Filter(sampleReports(), utcCriteria().WithArea(amsterdam))
	assert.Equal(t, []string{"r-100", "r-102"}, ids(got))

	pacific := Bounds{South: -10, West: 170, North: 10, East: -170}
	assert.True(t, pacific.Contains(Location{Lat: 0, Lng: 179}))
	assert.True(t, pacific.Contains(Location{Lat: 0, Lng: -175}))
	assert.False(t, pacific.Contains(Location{Lat: 0, Lng: 0}))
}

func TestFilterCombinesPredicatesWithAnd(t *testing.T) {
	from, _ := ParseDay("2024-01-01", time.UTC)
	criteria := utcCriteria().
		WithStatus("in-progress").
		WithSearch("bin").
		WithDates(DateRange, from, time.Time{})
	assert.Equal(t, []string{"r-104"}, ids(Filter(sampleReports(), criteria)))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	reports := sampleReports()
	before := fmt.Sprint(ids(reports))
	_ = Filter(reports, utcCriteria().WithStatus("resolved"))
	assert.Equal(t, before, fmt.Sprint(ids(reports)))
}

func criteriaMatrix() []FilterCriteria {
	from, _ := ParseDay("2024-01-10", time.UTC)
	to, _ := ParseDay("2024-01-11", time.UTC)
	return []FilterCriteria{
		utcCriteria(),
		utcCriteria().WithSearch("pothole"),
		utcCriteria().WithSearch("r-10"),
		utcCriteria().WithStatus("in-progress"),
		utcCriteria().WithIssueType("litter"),
		utcCriteria().WithDates(DateExact, from, time.Time{}),
		utcCriteria().WithDates(DateRange, from, to),
		utcCriteria().WithStatus("resolved").WithSearch("bike"),
		utcCriteria().WithArea(&Bounds{South: 50, West: 3, North: 54, East: 7}),
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	reports := sampleReports()
	for i, criteria := range criteriaMatrix() {
		once := Filter(reports, criteria)
		twice := Filter(once, criteria)
		assert.Equal(t, ids(once), ids(twice), "criteria #%d", i)
	}
}

func TestFilterIsSound(t *testing.T) {
	reports := sampleReports()
	for i, criteria := range criteriaMatrix() {
		kept := make(map[string]bool)
		for _, r := range Filter(reports, criteria) {
			kept[r.ID] = true
		}
		predicates := ActivePredicates(criteria)
		for _, r := range reports {
			failed := 0
			for _, p := range predicates {
				if !p.Test(r) {
					failed++
				}
			}
			if kept[r.ID] {
				assert.Zero(t, failed, "criteria #%d kept %s despite failing a predicate", i, r.ID)
			} else {
				assert.NotZero(t, failed, "criteria #%d dropped %s without a failing predicate", i, r.ID)
			}
		}
	}
}

func TestBoundsValid(t *testing.T) {
	assert.True(t, Bounds{South: 52, West: 4, North: 53, East: 5}.Valid())
	assert.True(t, Bounds{South: -10, West: 170, North: 10, East: -170}.Valid())
	assert.False(t, Bounds{South: -91, West: 4, North: 53, East: 5}.Valid())
	assert.False(t, Bounds{South: 52, West: 4, North: 53, East: 181}.Valid())
}
