package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cityreports/libs/reportview"
)

const maxListingBytes = 64 * 1024 * 1024

// ReportSource loads the raw report listing for a view.
type ReportSource interface {
	FetchReports(ctx context.Context, criteria reportview.FilterCriteria) ([]reportview.RawReport, error)
}

// RESTSource reads the listing from the reports backend over HTTP.
type RESTSource struct {
	URL    string
	Token  string
	Client *http.Client
}

func (s *RESTSource) FetchReports(ctx context.Context, criteria reportview.FilterCriteria) ([]reportview.RawReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reports api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("read reports listing: %w", err)
	}
	return reportview.DecodeListing(body)
}

// FallbackSource asks Primary first and Secondary only when Primary fails.
type FallbackSource struct {
	Primary   ReportSource
	Secondary ReportSource
	Log       *slog.Logger
}

func (s *FallbackSource) FetchReports(ctx context.Context, criteria reportview.FilterCriteria) ([]reportview.RawReport, error) {
	raws, err := s.Primary.FetchReports(ctx, criteria)
	if err == nil {
		return raws, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if s.Log != nil {
		s.Log.Warn("primary report source failed, falling back", "err", err)
	}
	raws, fallbackErr := s.Secondary.FetchReports(ctx, criteria)
	if fallbackErr != nil {
		return nil, fmt.Errorf("all report sources failed: %w; fallback: %v", err, fallbackErr)
	}
	return raws, nil
}

// chainReportSources nests sources into FallbackSources in the given order.
func chainReportSources(logger *slog.Logger, sources ...ReportSource) ReportSource {
	if len(sources) == 0 {
		return nil
	}
	chain := sources[len(sources)-1]
	for i := len(sources) - 2; i >= 0; i-- {
		chain = &FallbackSource{Primary: sources[i], Secondary: chain, Log: logger}
	}
	return chain
}
