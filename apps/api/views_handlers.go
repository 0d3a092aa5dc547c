package main

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"cityreports/libs/reportview"

	"github.com/gin-gonic/gin"
)

const criteriaDateLayout = "2006-01-02"

type criteriaPayload struct {
	Search    string             `json:"search"`
	IssueType string             `json:"issueType"`
	Status    string             `json:"status"`
	DateMode  string             `json:"dateMode"`
	DateFrom  string             `json:"dateFrom"`
	DateTo    string             `json:"dateTo"`
	Sort      string             `json:"sort"`
	Area      *reportview.Bounds `json:"area,omitempty"`
}

type createViewRequest struct {
	Profile       string           `json:"profile"`
	ViewportWidth int              `json:"viewportWidth"`
	Criteria      *criteriaPayload `json:"criteria"`
}

type viewResponse struct {
	ID         string              `json:"id"`
	Profile    string              `json:"profile"`
	State      reportview.State    `json:"state"`
	Generation uint64              `json:"generation"`
	Criteria   criteriaPayload     `json:"criteria"`
	Items      []reportview.Report `json:"items"`
	Pagination paginationView      `json:"pagination"`
	Empty      bool                `json:"empty"`
	FetchedAt  *string             `json:"fetchedAt,omitempty"`
	Error      *string             `json:"error,omitempty"`
	Retryable  bool                `json:"retryable"`
	Map        *mapView            `json:"map,omitempty"`
}

func (a *App) createViewHandler(c *gin.Context) {
	if !a.checkRateLimit("views:"+c.ClientIP(), viewCreateRateLimitRequests, viewCreateRateLimitWindow, a.now()) {
		writeAPIError(c, &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Too many views opened, try again later"})
		return
	}

	var body createViewRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		writeAPIError(c, err)
		return
	}

	name := strings.ToLower(strings.TrimSpace(body.Profile))
	if name == "" {
		name = defaultViewProfile
	}
	profile, ok := viewProfiles[name]
	if !ok {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "unknown_profile", Message: "Unknown view profile"})
		return
	}

	criteria := reportview.FilterCriteria{}
	if body.Criteria != nil {
		parsed, err := body.Criteria.toCriteria(a.cfg.Zone)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		criteria = parsed
	}

	session := a.newViewSession(profile, body.ViewportWidth)
	// A failed first fetch still yields a session; the view carries the retry affordance.
	_ = session.controller.SetCriteria(c.Request.Context(), criteria)
	a.storeSession(session)

	a.log.Info("view session created", "session_id", session.id, "profile", profile.Name)
	c.JSON(http.StatusCreated, a.buildViewResponse(session, session.controller.View()))
}

func (a *App) getViewHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.buildViewResponse(session, session.controller.View()))
}

func (a *App) deleteViewHandler(c *gin.Context) {
	if !a.dropSession(c.Param("id")) {
		writeSessionNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) setCriteriaHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	var body criteriaPayload
	if err := bindOptionalJSON(c, &body); err != nil {
		writeAPIError(c, err)
		return
	}
	criteria, err := body.toCriteria(a.cfg.Zone)
	if err != nil {
		writeAPIError(c, err)
		return
	}

	_ = session.controller.SetCriteria(c.Request.Context(), criteria)
	c.JSON(http.StatusOK, a.buildViewResponse(session, session.controller.View()))
}

func (a *App) setPageHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	var body struct {
		Page int `json:"page"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid payload"})
		return
	}

	view := session.controller.SetPage(body.Page)
	c.JSON(http.StatusOK, a.buildViewResponse(session, view))
}

func (a *App) viewportHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	var body struct {
		Width     *int `json:"width"`
		UserMoved bool `json:"userMoved"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid payload"})
		return
	}
	if body.UserMoved && session.mapSync == nil {
		writeAPIError(c, &apiError{Status: http.StatusConflict, Code: "map_not_enabled", Message: "View has no map"})
		return
	}

	if body.UserMoved {
		session.mapSync.UserMovedViewport()
	}
	view := session.controller.View()
	if body.Width != nil && session.profile.Responsive {
		view = session.controller.SetPageSize(reportview.ResponsivePageSize(session.profile.PageSize, *body.Width))
	}
	c.JSON(http.StatusOK, a.buildViewResponse(session, view))
}

func (a *App) recenterHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	if session.mapSync == nil {
		writeAPIError(c, &apiError{Status: http.StatusConflict, Code: "map_not_enabled", Message: "View has no map"})
		return
	}

	session.mapSync.RequestRecenter()
	view := session.controller.Redraw()
	c.JSON(http.StatusOK, a.buildViewResponse(session, view))
}

func (a *App) refreshHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	_ = session.controller.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, a.buildViewResponse(session, session.controller.View()))
}

func (a *App) patchReportHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	reportID := c.Param("reportID")

	var body struct {
		Status *string              `json:"status"`
		Report reportview.RawReport `json:"report"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid payload"})
		return
	}

	var err error
	switch {
	case body.Status != nil:
		if strings.TrimSpace(*body.Status) == "" {
			writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_status", Message: "Status must not be empty"})
			return
		}
		_, err = session.controller.ApplyStatus(reportID, *body.Status)
	case body.Report != nil:
		if apiErr := alignReportID(body.Report, reportID); apiErr != nil {
			writeAPIError(c, apiErr)
			return
		}
		_, err = session.controller.PatchReport(body.Report)
	default:
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Either status or report is required"})
		return
	}
	if err != nil {
		writeReportError(c, err)
		return
	}

	c.JSON(http.StatusOK, a.buildViewResponse(session, session.controller.View()))
}

func (a *App) deleteReportHandler(c *gin.Context) {
	session, ok := a.sessionFromRequest(c)
	if !ok {
		return
	}
	if err := session.controller.RemoveReport(c.Param("reportID")); err != nil {
		writeReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.buildViewResponse(session, session.controller.View()))
}

func (a *App) sessionFromRequest(c *gin.Context) (*viewSession, bool) {
	session, ok := a.findSession(c.Param("id"))
	if !ok {
		writeSessionNotFound(c)
		return nil, false
	}
	return session, true
}

func writeSessionNotFound(c *gin.Context) {
	writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "view_not_found", Message: "View session not found"})
}

func writeReportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reportview.ErrReportNotFound):
		writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "report_not_found", Message: "Report not found"})
	case errors.Is(err, reportview.ErrMissingID):
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_report", Message: "Report has no id"})
	default:
		writeAPIError(c, err)
	}
}

// alignReportID fills in the path id when the patch body has none and rejects a mismatch.
func alignReportID(raw reportview.RawReport, reportID string) *apiError {
	probe, err := reportview.Normalize(raw)
	if errors.Is(err, reportview.ErrMissingID) {
		raw["id"] = reportID
		return nil
	}
	if probe.ID != reportID {
		return &apiError{Status: http.StatusBadRequest, Code: "id_mismatch", Message: "Report id does not match the path"}
	}
	return nil
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, target any) error {
	if err := c.ShouldBindJSON(target); err != nil && !errors.Is(err, io.EOF) {
		return &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid payload"}
	}
	return nil
}

func (p criteriaPayload) toCriteria(zone *time.Location) (reportview.FilterCriteria, error) {
	mode, err := reportview.ParseDateMode(p.DateMode)
	if err != nil {
		return reportview.FilterCriteria{}, &apiError{Status: http.StatusBadRequest, Code: "invalid_date_mode", Message: err.Error()}
	}
	from, err := reportview.ParseDay(p.DateFrom, zone)
	if err != nil {
		return reportview.FilterCriteria{}, &apiError{Status: http.StatusBadRequest, Code: "invalid_date", Message: err.Error()}
	}
	to, err := reportview.ParseDay(p.DateTo, zone)
	if err != nil {
		return reportview.FilterCriteria{}, &apiError{Status: http.StatusBadRequest, Code: "invalid_date", Message: err.Error()}
	}
	order, err := reportview.ParseSortOrder(p.Sort)
	if err != nil {
		return reportview.FilterCriteria{}, &apiError{Status: http.StatusBadRequest, Code: "invalid_sort", Message: err.Error()}
	}
	if p.Area != nil && !p.Area.Valid() {
		return reportview.FilterCriteria{}, &apiError{Status: http.StatusBadRequest, Code: "invalid_area", Message: "Area bounds must be valid coordinates"}
	}

	criteria := reportview.FilterCriteria{Zone: zone}.
		WithSearch(p.Search).
		WithIssueType(p.IssueType).
		WithStatus(p.Status).
		WithSort(order).
		WithDates(mode, from, to).
		WithArea(p.Area)
	return criteria, nil
}

func criteriaToPayload(criteria reportview.FilterCriteria, zone *time.Location) criteriaPayload {
	payload := criteriaPayload{
		Search:    criteria.SearchText,
		IssueType: criteria.IssueType,
		Status:    criteria.Status,
		DateMode:  string(criteria.DateMode),
		Sort:      string(criteria.Sort),
	}
	if criteria.Zone != nil {
		zone = criteria.Zone
	}
	if !criteria.DateFrom.IsZero() {
		payload.DateFrom = criteria.DateFrom.In(zone).Format(criteriaDateLayout)
	}
	if !criteria.DateTo.IsZero() {
		payload.DateTo = criteria.DateTo.In(zone).Format(criteriaDateLayout)
	}
	if criteria.Area != nil {
		area := *criteria.Area
		payload.Area = &area
	}
	return payload
}

func (a *App) buildViewResponse(session *viewSession, view reportview.View) viewResponse {
	items := view.Page.Items
	if items == nil {
		items = []reportview.Report{}
	}

	response := viewResponse{
		ID:         session.id,
		Profile:    session.profile.Name,
		State:      view.State,
		Generation: view.Generation,
		Criteria:   criteriaToPayload(view.Criteria, a.cfg.Zone),
		Items:      items,
		Pagination: buildPaginationView(view.Page),
		Empty:      view.Empty(),
		Retryable:  view.Retryable,
	}
	if !view.FetchedAt.IsZero() {
		fetchedAt := view.FetchedAt.UTC().Format(time.RFC3339)
		response.FetchedAt = &fetchedAt
	}
	if view.Err != nil {
		message := view.Err.Error()
		response.Error = &message
	}
	if session.board != nil {
		response.Map = session.board.snapshot()
	}
	return response
}
