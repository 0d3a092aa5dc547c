package reportview

import (
	"strings"
	"time"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Bounds is a map viewport in degrees. West may exceed East for boxes across the antimeridian.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func (b Bounds) rect() s2.Rect {
	south, north := b.South, b.North
	if south > north {
		south, north = north, south
	}
	return s2.Rect{
		Lat: r1.Interval{Lo: radians(south), Hi: radians(north)},
		// An s1.Interval with Lo > Hi wraps across the antimeridian.
		Lng: s1.Interval{Lo: radians(b.West), Hi: radians(b.East)},
	}
}

func radians(degrees float64) float64 {
	return (s1.Angle(degrees) * s1.Degree).Radians()
}

// Valid reports whether both corners are real coordinates.
func (b Bounds) Valid() bool {
	return s2.LatLngFromDegrees(b.South, b.West).IsValid() && s2.LatLngFromDegrees(b.North, b.East).IsValid()
}

func (b Bounds) Contains(loc Location) bool {
	return b.rect().ContainsLatLng(s2.LatLngFromDegrees(loc.Lat, loc.Lng))
}

// Predicate is one filter dimension's inclusion test.
type Predicate struct {
	Name string
	Test func(Report) bool
}

// ActivePredicates returns the predicates criteria switch on; blank dimensions are left out.
func ActivePredicates(c FilterCriteria) []Predicate {
	predicates := make([]Predicate, 0, 5)

	if needle := strings.ToLower(strings.TrimSpace(c.SearchText)); needle != "" {
		predicates = append(predicates, Predicate{Name: "search", Test: func(r Report) bool {
			return matchesSearch(r, needle)
		}})
	}
	if issueType := strings.TrimSpace(c.IssueType); issueType != "" {
		predicates = append(predicates, Predicate{Name: "issueType", Test: func(r Report) bool {
			return strings.EqualFold(r.IssueType, issueType)
		}})
	}
	if strings.TrimSpace(c.Status) != "" {
		want := NormalizeStatus(c.Status)
		predicates = append(predicates, Predicate{Name: "status", Test: func(r Report) bool {
			return strings.EqualFold(string(r.Status), string(want))
		}})
	}
	if test := datePredicate(c); test != nil {
		predicates = append(predicates, Predicate{Name: "date", Test: test})
	}
	if c.Area != nil {
		rect := c.Area.rect()
		predicates = append(predicates, Predicate{Name: "area", Test: func(r Report) bool {
			return r.Location != nil && rect.ContainsLatLng(s2.LatLngFromDegrees(r.Location.Lat, r.Location.Lng))
		}})
	}
	return predicates
}

// Filter returns the reports that satisfy every active predicate, in input order.
// The input slice is never modified.
func Filter(reports []Report, c FilterCriteria) []Report {
	predicates := ActivePredicates(c)
	filtered := make([]Report, 0, len(reports))
	for _, report := range reports {
		if matchesAll(report, predicates) {
			filtered = append(filtered, report)
		}
	}
	return filtered
}

func Matches(r Report, c FilterCriteria) bool {
	return matchesAll(r, ActivePredicates(c))
}

func matchesAll(r Report, predicates []Predicate) bool {
	for _, predicate := range predicates {
		if !predicate.Test(r) {
			return false
		}
	}
	return true
}

// An id hit wins outright; otherwise the text fields are searched as one string.
func matchesSearch(r Report, needle string) bool {
	if strings.Contains(strings.ToLower(r.ID), needle) {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{r.IssueType, r.Description, r.Title, r.address()}, " "))
	return strings.Contains(haystack, needle)
}

func datePredicate(c FilterCriteria) func(Report) bool {
	zone := c.zone()
	switch c.DateMode {
	case DateExact:
		if c.DateFrom.IsZero() {
			return nil
		}
		wy, wm, wd := c.DateFrom.In(zone).Date()
		return func(r Report) bool {
			if !r.HasCreatedAt() {
				return false
			}
			y, m, d := r.CreatedAt.In(zone).Date()
			return y == wy && m == wm && d == wd
		}
	case DateRange:
		if c.DateFrom.IsZero() && c.DateTo.IsZero() {
			return nil
		}
		var from, to time.Time
		if !c.DateFrom.IsZero() {
			from = startOfDay(c.DateFrom, zone)
		}
		if !c.DateTo.IsZero() {
			to = startOfDay(c.DateTo, zone).AddDate(0, 0, 1).Add(-time.Millisecond)
		}
		return func(r Report) bool {
			if !r.HasCreatedAt() {
				return false
			}
			if !from.IsZero() && r.CreatedAt.Before(from) {
				return false
			}
			if !to.IsZero() && r.CreatedAt.After(to) {
				return false
			}
			return true
		}
	}
	return nil
}

func startOfDay(t time.Time, zone *time.Location) time.Time {
	y, m, d := t.In(zone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}
