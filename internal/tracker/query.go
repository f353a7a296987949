package tracker

import (
	"strconv"
	"strings"
	"time"

	"bugtracker/internal/models"
)

// ProjectParams are the raw paging parameters of a project listing.
// Empty strings mean the parameter was not supplied.
type ProjectParams struct {
	Skip string `form:"skip"`
	Take string `form:"take"`
}

// TaskParams are the raw parameters of a task listing, as a client sends them.
// Empty strings mean the parameter was not supplied.
type TaskParams struct {
	ProjectID      string `form:"projectId"`
	Skip           string `form:"skip"`
	Take           string `form:"take"`
	SortField      string `form:"sortField"`
	SortDirection  string `form:"sortDirection"`
	PriorityFilter string `form:"priorityFilter"`
	CreatedFrom    string `form:"createdFrom"`
	CreatedTo      string `form:"createdTo"`
}

// ParseProjectParams validates paging parameters.
func ParseProjectParams(p ProjectParams) (models.Page, error) {
	errs := fieldErrors{}
	page := parsePage(p.Skip, p.Take, errs)
	return page, errs.err("invalid query parameters")
}

// ParseTaskParams validates p and turns it into a normalized filter: date
// bounds truncated to whole days and the sort key resolved.
func ParseTaskParams(p TaskParams) (models.TaskFilter, error) {
	errs := fieldErrors{}
	f := models.TaskFilter{
		SortBy:     ResolveSortField(p.SortField),
		Descending: IsDescending(p.SortDirection),
		Page:       parsePage(p.Skip, p.Take, errs),
	}

	switch id, err := strconv.ParseInt(strings.TrimSpace(p.ProjectID), 10, 64); {
	case strings.TrimSpace(p.ProjectID) == "":
		errs.add("projectId", "required")
	case err != nil:
		errs.add("projectId", "integer")
	case id < 1:
		errs.add("projectId", "min")
	default:
		f.ProjectID = id
	}

	if v, ok := optionalInt(p.PriorityFilter, "priorityFilter", errs); ok {
		if v > models.MaxPriority {
			errs.add("priorityFilter", "max")
		}
		f.Priority = &v
	}
	if day, ok := optionalDay(p.CreatedFrom, "createdFrom", errs); ok {
		f.CreatedFrom = &day
	}
	if day, ok := optionalDay(p.CreatedTo, "createdTo", errs); ok {
		next := day.AddDate(0, 0, 1)
		f.CreatedBefore = &next
	}

	if err := errs.err("invalid query parameters"); err != nil {
		return models.TaskFilter{}, err
	}
	return f, nil
}

// ResolveSortField maps a client supplied field name onto a sortable
// attribute. Unknown names fall back to the creation date.
func ResolveSortField(name string) models.TaskSortField {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "taskpriority", "priority":
		return models.SortByPriority
	default:
		return models.SortByCreated
	}
}

// IsDescending treats an absent or falsy direction as ascending and anything else as descending.
func IsDescending(direction string) bool {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "0", "false", "asc":
		return false
	}
	return true
}

var dayLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDay parses s and drops the time of day, keeping the location it was given in.
// Inputs without an offset are read as UTC.
func ParseDay(s string) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range dayLayouts {
		if t, err = time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, t.Location()), nil
		}
	}
	return time.Time{}, err
}

func parsePage(skip, take string, errs fieldErrors) models.Page {
	var page models.Page
	if v, ok := optionalInt(skip, "skip", errs); ok {
		if v < 0 {
			errs.add("skip", "min")
		}
		page.Skip = v
	}
	if v, ok := optionalInt(take, "take", errs); ok {
		if v < 0 {
			errs.add("take", "min")
		}
		page.Take = &v
	}
	return page
}

func optionalInt(raw, field string, errs fieldErrors) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs.add(field, "integer")
		return 0, false
	}
	return v, true
}

func optionalDay(raw, field string, errs fieldErrors) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	day, err := ParseDay(raw)
	if err != nil {
		errs.add(field, "date")
		return time.Time{}, false
	}
	return day, true
}
