package main

import "cityreports/libs/reportview"

type paginationView struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	NextPage    int  `json:"nextPage"`
	PrevPage    int  `json:"prevPage"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// buildPaginationView renders the page block; NextPage and PrevPage stay inside 1..TotalPages.
func buildPaginationView(page reportview.Page) paginationView {
	next := page.Page
	if page.HasNext {
		next++
	}
	prev := page.Page
	if page.HasPrev {
		prev--
	}

	return paginationView{
		CurrentPage: page.Page,
		PageSize:    page.PageSize,
		TotalPages:  page.TotalPages,
		TotalCount:  page.TotalItems,
		NextPage:    next,
		PrevPage:    prev,
		HasNext:     page.HasNext,
		HasPrev:     page.HasPrev,
	}
}
