package reportview

import (
	"sort"
	"strings"
)

type SortOrder string

const (
	SortNewest        SortOrder = "newest"
	SortOldest        SortOrder = "oldest"
	SortMostReported  SortOrder = "mostReported"
	SortResolvedFirst SortOrder = "resolvedFirst"
)

var sortOrders = []SortOrder{SortNewest, SortOldest, SortMostReported, SortResolvedFirst}

// ParseSortOrder accepts the order names case-insensitively. Blank input means insertion order.
func ParseSortOrder(raw string) (SortOrder, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, order := range sortOrders {
		if strings.EqualFold(raw, string(order)) {
			return order, nil
		}
	}
	return "", ErrUnknownSortOrder
}

// Sort returns a stably ordered copy. Reports without createdAt go last whenever dates are
// compared; an unknown order keeps the input order.
func Sort(reports []Report, order SortOrder) []Report {
	sorted := append([]Report{}, reports...)

	var less func(a, b Report) bool
	switch order {
	case SortNewest:
		less = newerFirst
	case SortOldest:
		less = func(a, b Report) bool {
			if a.HasCreatedAt() != b.HasCreatedAt() {
				return a.HasCreatedAt()
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case SortMostReported:
		less = func(a, b Report) bool {
			return a.ReportCount > b.ReportCount
		}
	case SortResolvedFirst:
		less = func(a, b Report) bool {
			aResolved, bResolved := a.Status == StatusResolved, b.Status == StatusResolved
			if aResolved != bResolved {
				return aResolved
			}
			return newerFirst(a, b)
		}
	default:
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	return sorted
}

func newerFirst(a, b Report) bool {
	if a.HasCreatedAt() != b.HasCreatedAt() {
		return a.HasCreatedAt()
	}
	return a.CreatedAt.After(b.CreatedAt)
}
