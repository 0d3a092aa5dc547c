// Package reportview decides which reports a view shows, in what order, on which page,
// and which of them are pinned on the map.
package reportview

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingID        = errors.New("report has no id")
	ErrUnknownSortOrder = errors.New("unknown sort order")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateMode  = errors.New("invalid date mode")
)

// RawReport is a report as the backend sends it, before any field aliasing is resolved.
type RawReport map[string]any

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Report is the canonical shape every component after the Normalizer works with.
type Report struct {
	ID          string    `json:"id"`
	IssueType   string    `json:"issueType"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Location    *Location `json:"location"`
	Address     *string   `json:"address,omitempty"`
	District    *string   `json:"district,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ReportCount int       `json:"reportCount"`
	ReporterID  *string   `json:"reporterId,omitempty"`
}

// MarshalJSON leaves createdAt out when the backend sent no usable timestamp.
func (r Report) MarshalJSON() ([]byte, error) {
	type plainReport Report
	out := struct {
		plainReport
		CreatedAt *time.Time `json:"createdAt,omitempty"`
	}{plainReport: plainReport(r)}
	if r.HasCreatedAt() {
		createdAt := r.CreatedAt
		out.CreatedAt = &createdAt
	}
	return json.Marshal(out)
}

func (r Report) IssueTypeKey() string {
	return strings.ToLower(strings.TrimSpace(r.IssueType))
}

func (r Report) HasCreatedAt() bool {
	return !r.CreatedAt.IsZero()
}

// Label is the free-text place name shown when coordinates are missing.
func (r Report) Label() string {
	if r.Address != nil && strings.TrimSpace(*r.Address) != "" {
		return *r.Address
	}
	if r.District != nil && strings.TrimSpace(*r.District) != "" {
		return *r.District
	}
	return ""
}

func (r Report) address() string {
	if r.Address == nil {
		return ""
	}
	return *r.Address
}

type DateMode string

const (
	DateExact DateMode = "exact"
	DateRange DateMode = "range"
)

func ParseDateMode(raw string) (DateMode, error) {
	switch DateMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case DateExact:
		return DateExact, nil
	case DateRange:
		return DateRange, nil
	}
	return "", ErrInvalidDateMode
}

// FilterCriteria is passed by value; the With helpers return modified copies.
type FilterCriteria struct {
	SearchText string
	IssueType  string
	Status     string
	DateMode   DateMode
	DateFrom   time.Time
	DateTo     time.Time
	Sort       SortOrder
	Area       *Bounds

	// Zone decides calendar days for date predicates. Nil means time.Local.
	Zone *time.Location
}

func (c FilterCriteria) WithSearch(text string) FilterCriteria {
	c.SearchText = text
	return c
}

func (c FilterCriteria) WithStatus(status string) FilterCriteria {
	c.Status = status
	return c
}

func (c FilterCriteria) WithIssueType(issueType string) FilterCriteria {
	c.IssueType = issueType
	return c
}

func (c FilterCriteria) WithSort(order SortOrder) FilterCriteria {
	c.Sort = order
	return c
}

func (c FilterCriteria) WithDates(mode DateMode, from, to time.Time) FilterCriteria {
	c.DateMode = mode
	c.DateFrom = from
	c.DateTo = to
	return c
}

func (c FilterCriteria) WithArea(area *Bounds) FilterCriteria {
	if area != nil {
		copied := *area
		area = &copied
	}
	c.Area = area
	return c
}

func (c FilterCriteria) zone() *time.Location {
	if c.Zone == nil {
		return time.Local
	}
	return c.Zone
}

// ParseDay reads a calendar day ("2006-01-02") or a full RFC 3339 timestamp in zone.
func ParseDay(raw string, zone *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if zone == nil {
		zone = time.Local
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, zone); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(zone), nil
	}
	return time.Time{}, ErrInvalidDate
}
