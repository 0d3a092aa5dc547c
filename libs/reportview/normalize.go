package reportview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Epoch numbers above this are read as milliseconds.
const epochMillisThreshold = 1e11

type Normalizer struct {
	// Zone is used for timestamps that carry no offset. Nil means time.Local.
	Zone   *time.Location
	Logger *slog.Logger
}

// Normalize maps one raw record onto the canonical Report. Only a missing id is an error;
// every other malformed field degrades to its zero value.
func (n Normalizer) Normalize(raw RawReport) (Report, error) {
	id := firstString(raw, "_id", "id")
	if id == "" {
		return Report{}, ErrMissingID
	}

	report := Report{
		ID:          id,
		IssueType:   strings.TrimSpace(firstString(raw, "issueType", "type", "category")),
		Title:       firstString(raw, "title"),
		Description: firstString(raw, "description"),
		Status:      NormalizeStatus(firstString(raw, "status")),
		Location:    parseLocation(raw),
		Address:     optionalString(raw, "address"),
		District:    optionalString(raw, "district"),
		CreatedAt:   parseCreatedAt(raw["createdAt"], n.zone()),
		ReporterID:  optionalString(raw, "reporterId", "reporter_id", "userId"),
	}
	if count, ok := firstNumber(raw, "reportCount", "count"); ok && count > 0 {
		report.ReportCount = int(count)
	}
	return report, nil
}

// NormalizeAll drops records that cannot be normalized and keeps the first record for
// each id, logging every drop.
func (n Normalizer) NormalizeAll(raws []RawReport) []Report {
	reports := make([]Report, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		report, err := n.Normalize(raw)
		if err != nil {
			n.logger().Warn("dropping malformed report", "index", i, "err", err)
			continue
		}
		if _, dup := seen[report.ID]; dup {
			n.logger().Warn("dropping duplicate report", "index", i, "report_id", report.ID)
			continue
		}
		seen[report.ID] = struct{}{}
		reports = append(reports, report)
	}
	return reports
}

func (n Normalizer) zone() *time.Location {
	if n.Zone == nil {
		return time.Local
	}
	return n.Zone
}

func (n Normalizer) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Normalize uses a zero Normalizer: local zone, default logger.
func Normalize(raw RawReport) (Report, error) {
	return Normalizer{}.Normalize(raw)
}

// DecodeListing reads a report listing sent either as a bare array or as {"data": [...]}.
func DecodeListing(body []byte) ([]RawReport, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode listing: empty body")
	}

	if trimmed[0] == '[' {
		var raws []RawReport
		if err := decodeJSON(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		return raws, nil
	}

	var envelope struct {
		Data *[]RawReport `json:"data"`
	}
	if err := decodeJSON(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("decode listing: envelope has no data field")
	}
	return *envelope.Data, nil
}

func decodeJSON(body []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	return decoder.Decode(target)
}

func firstString(raw RawReport, keys ...string) string {
	for _, key := range keys {
		if value, ok := coerceString(raw[key]); ok && value != "" {
			return value
		}
	}
	return ""
}

func optionalString(raw RawReport, keys ...string) *string {
	value := strings.TrimSpace(firstString(raw, keys...))
	if value == "" {
		return nil
	}
	return &value
}

func coerceString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

func firstNumber(raw RawReport, keys ...string) (float64, bool) {
	for _, key := range keys {
		if value, ok := coerceNumber(raw[key]); ok {
			return value, true
		}
	}
	return 0, false
}

func coerceNumber(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseLocation(raw RawReport) *Location {
	switch v := raw["location"].(type) {
	case string:
		return parseLatLngString(v)
	case map[string]any:
		return parseLocationObject(v)
	case RawReport:
		return parseLocationObject(v)
	case nil:
		lat, okLat := firstNumber(raw, "lat", "latitude")
		lng, okLng := firstNumber(raw, "lng", "lon", "longitude")
		if okLat && okLng {
			return validLocation(lat, lng)
		}
	}
	return nil
}

func parseLocationObject(obj map[string]any) *Location {
	if coords, ok := obj["coordinates"].([]any); ok && len(coords) == 2 {
		// GeoJSON order is [lng, lat].
		lng, okLng := coerceNumber(coords[0])
		lat, okLat := coerceNumber(coords[1])
		if okLat && okLng {
			return validLocation(lat, lng)
		}
		return nil
	}
	lat, okLat := firstNumber(obj, "lat", "latitude")
	lng, okLng := firstNumber(obj, "lng", "lon", "longitude")
	if !okLat || !okLng {
		return nil
	}
	return validLocation(lat, lng)
}

func parseLatLngString(value string) *Location {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return nil
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	return validLocation(lat, lng)
}

func validLocation(lat, lng float64) *Location {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return nil
	}
	if !s2.LatLngFromDegrees(lat, lng).IsValid() {
		return nil
	}
	return &Location{Lat: lat, Lng: lng}
}

func parseCreatedAt(value any, zone *time.Location) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		return parseTimestamp(v, zone)
	default:
		if n, ok := coerceNumber(v); ok && n > 0 {
			if n >= epochMillisThreshold {
				return time.UnixMilli(int64(n))
			}
			return time.Unix(int64(n), 0)
		}
	}
	return time.Time{}
}

func parseTimestamp(value string, zone *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, value, zone); err == nil {
			return t
		}
	}
	return time.Time{}
}
