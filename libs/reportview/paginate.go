package reportview

const (
	DefaultPageSize = 10
	AdminPageSize   = 10
	CitizenPageSize = 6
	MinGridPageSize = 3
)

// Page is one pagination window plus the metadata needed to render page controls.
type Page struct {
	Items      []Report `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
	TotalItems int      `json:"totalItems"`
	HasPrev    bool     `json:"hasPrev"`
	HasNext    bool     `json:"hasNext"`
}

// Paginate cuts the 1-indexed page out of reports, clamping page into [1, totalPages].
// An empty sequence still has one (empty) page.
func Paginate(reports []Report, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(reports)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	items := make([]Report, 0, end-start)
	if start < end {
		items = append(items, reports[start:end]...)
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}

// ResponsivePageSize shrinks a grid's page size on narrow viewports. A width of zero or
// less means unknown and keeps base.
func ResponsivePageSize(base, viewportWidth int) int {
	if base < 1 {
		base = CitizenPageSize
	}
	size := base
	switch {
	case viewportWidth <= 0:
		return base
	case viewportWidth < 576:
		size = MinGridPageSize
	case viewportWidth < 992:
		size = 4
	}
	if size > base {
		return base
	}
	return size
}
