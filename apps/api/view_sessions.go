package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"cityreports/libs/reportview"

	"github.com/google/uuid"
)

type viewProfile struct {
	Name       string
	PageSize   int
	DateMode   reportview.DateMode
	Responsive bool
	Map        bool
}

var viewProfiles = map[string]viewProfile{
	"admin":   {Name: "admin", PageSize: reportview.AdminPageSize, DateMode: reportview.DateExact},
	"citizen": {Name: "citizen", PageSize: reportview.CitizenPageSize, DateMode: reportview.DateRange, Responsive: true},
	"map":     {Name: "map", PageSize: reportview.CitizenPageSize, DateMode: reportview.DateRange, Map: true},
}

const defaultViewProfile = "citizen"

type viewSession struct {
	id         string
	profile    viewProfile
	controller *reportview.Controller
	mapSync    *reportview.MapSync
	board      *markerBoard
	lastSeen   time.Time
}

type mapMarker struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

type mapView struct {
	Markers []mapMarker          `json:"markers"`
	Center  *reportview.Location `json:"center"`
	Zoom    int                  `json:"zoom"`
}

// markerBoard is the server-side map widget: it records what the browser map has to show.
type markerBoard struct {
	mu      sync.Mutex
	markers map[string]mapMarker
	center  *reportview.Location
	zoom    int
}

func newMarkerBoard() *markerBoard {
	return &markerBoard{markers: make(map[string]mapMarker)}
}

func (b *markerBoard) AddMarker(id string, lat, lng float64, label string) {
	b.mu.Lock()
	b.markers[id] = mapMarker{ID: id, Lat: lat, Lng: lng, Label: label}
	b.mu.Unlock()
}

func (b *markerBoard) RemoveMarker(id string) {
	b.mu.Lock()
	delete(b.markers, id)
	b.mu.Unlock()
}

func (b *markerBoard) SetCenter(lat, lng float64) {
	b.mu.Lock()
	b.center = &reportview.Location{Lat: lat, Lng: lng}
	b.mu.Unlock()
}

func (b *markerBoard) SetZoom(level int) {
	b.mu.Lock()
	b.zoom = level
	b.mu.Unlock()
}

func (b *markerBoard) snapshot() *mapView {
	b.mu.Lock()
	defer b.mu.Unlock()

	markers := make([]mapMarker, 0, len(b.markers))
	for _, marker := range b.markers {
		markers = append(markers, marker)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].ID < markers[j].ID })

	view := &mapView{Markers: markers, Zoom: b.zoom}
	if b.center != nil {
		center := *b.center
		view.Center = &center
	}
	return view
}

func newViewSessionID() string {
	return uuid.NewString()
}

func (a *App) newViewSession(profile viewProfile, viewportWidth int) *viewSession {
	pageSize := profile.PageSize
	if profile.Responsive {
		pageSize = reportview.ResponsivePageSize(profile.PageSize, viewportWidth)
	}

	session := &viewSession{
		id:       a.newSessionID(),
		profile:  profile,
		lastSeen: a.now(),
	}
	cfg := reportview.Config{
		PageSize: pageSize,
		DateMode: profile.DateMode,
		Zone:     a.cfg.Zone,
		Logger:   a.log.With("session_id", session.id, "profile", profile.Name),
		Now:      a.now,
	}
	if profile.Map {
		session.board = newMarkerBoard()
		session.mapSync = reportview.NewMapSync(session.board, a.cfg.MapDefaultZoom)
		cfg.Map = session.mapSync
	}
	session.controller = reportview.NewController(a.sessionFetcher(), cfg)
	return session
}

// sessionFetcher bounds every fetch by the configured timeout.
func (a *App) sessionFetcher() reportview.Fetcher {
	return reportview.FetcherFunc(func(ctx context.Context, criteria reportview.FilterCriteria) ([]reportview.RawReport, error) {
		if a.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.FetchTimeout)
			defer cancel()
		}
		return a.source.FetchReports(ctx, criteria)
	})
}

func (a *App) storeSession(session *viewSession) {
	a.sessionsMu.Lock()
	a.sessions[session.id] = session
	a.sessionsMu.Unlock()
}

func (a *App) findSession(id string) (*viewSession, bool) {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	session, ok := a.sessions[id]
	if ok {
		session.lastSeen = a.now()
	}
	return session, ok
}

func (a *App) dropSession(id string) bool {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	if _, ok := a.sessions[id]; !ok {
		return false
	}
	delete(a.sessions, id)
	return true
}

func (a *App) startSessionCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.pruneIdleSessions(now)
				a.pruneRateLimiterState(now)
			}
		}
	}()
}

func (a *App) pruneIdleSessions(now time.Time) {
	ttl := a.cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	a.sessionsMu.Lock()
	pruned := 0
	for id, session := range a.sessions {
		if now.Sub(session.lastSeen) >= ttl {
			delete(a.sessions, id)
			pruned++
		}
	}
	a.sessionsMu.Unlock()

	if pruned > 0 {
		a.log.Info("pruned idle view sessions", "count", pruned)
	}
}
