package reportview

import (
	"sort"
	"sync"
)

const DefaultMapZoom = 13

// MapWidget is the map the markers are drawn on.
type MapWidget interface {
	AddMarker(id string, lat, lng float64, label string)
	RemoveMarker(id string)
	SetCenter(lat, lng float64)
	SetZoom(level int)
}

// MapSync keeps a widget's markers equal to the located reports of the current filtered
// set. It remembers what it put on the widget, so it must be the widget's only writer.
type MapSync struct {
	mu          sync.Mutex
	widget      MapWidget
	defaultZoom int
	markers     map[string]pin
	centered    bool
	userMoved   bool
	recenter    bool
}

type pin struct {
	loc   Location
	label string
}

func NewMapSync(widget MapWidget, defaultZoom int) *MapSync {
	if defaultZoom <= 0 {
		defaultZoom = DefaultMapZoom
	}
	return &MapSync{
		widget:      widget,
		defaultZoom: defaultZoom,
		markers:     make(map[string]pin),
	}
}

// Sync reconciles markers with filtered. Pass the filtered set, not a page of it.
func (m *MapSync) Sync(filtered []Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	visible := make(map[string]Report, len(filtered))
	order := make([]string, 0, len(filtered))
	for _, report := range filtered {
		if report.Location == nil {
			continue
		}
		if _, dup := visible[report.ID]; dup {
			continue
		}
		visible[report.ID] = report
		order = append(order, report.ID)
	}

	for id, shown := range m.markers {
		report, keep := visible[id]
		if keep && *report.Location == shown.loc && MarkerLabel(report) == shown.label {
			continue
		}
		m.widget.RemoveMarker(id)
		delete(m.markers, id)
	}

	for _, id := range order {
		if _, present := m.markers[id]; present {
			continue
		}
		report := visible[id]
		label := MarkerLabel(report)
		m.widget.AddMarker(id, report.Location.Lat, report.Location.Lng, label)
		m.markers[id] = pin{loc: *report.Location, label: label}
	}

	if len(order) == 0 {
		return
	}
	if m.recenter || (!m.centered && !m.userMoved) {
		first := visible[order[0]].Location
		m.widget.SetCenter(first.Lat, first.Lng)
		m.widget.SetZoom(m.defaultZoom)
		m.centered = true
		m.recenter = false
	}
}

// UserMovedViewport records a user pan or zoom; automatic centering stops from then on.
func (m *MapSync) UserMovedViewport() {
	m.mu.Lock()
	m.userMoved = true
	m.mu.Unlock()
}

// RequestRecenter makes the next Sync with a visible report center on it again.
func (m *MapSync) RequestRecenter() {
	m.mu.Lock()
	m.recenter = true
	m.mu.Unlock()
}

func (m *MapSync) MarkerIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.markers))
	for id := range m.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarkerLabel is the text shown on a report's pin.
func MarkerLabel(r Report) string {
	label := r.IssueType
	if label == "" {
		label = "Report"
	}
	if place := r.Label(); place != "" {
		label += " - " + place
	}
	return label
}
