// Package collection drives the paginated history list: which page is showing,
// fetching it from the collaborator, and keeping it consistent after edits and deletes.
//
// THE URL IS THE SOURCE OF TRUTH:
// The current page lives in the location's "page" query parameter. Clicking a page
// control pushes a new location; the view only ever changes page in reaction to a
// location change. Back/forward navigation therefore works with no extra code, and a
// shared link like /history?page=3 opens directly on page 3.
//
// PAGE MATH:
//
//	offset     = (page-1) * PageSize
//	range      = [offset, offset+PageSize-1], newest first
//	totalPages = ceil(count / PageSize)   (0 for an empty collection)
package collection

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageSize is the number of poems on one history page.
const PageSize = 6

// HistoryPath is the list location.
const HistoryPath = "/history"

// PageState is the pagination part of the view.
type PageState struct {
	Current    int `json:"current"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	Count      int `json:"count"`
}

// TotalPages returns ceil(count/PageSize). An empty collection has zero pages.
func TotalPages(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + PageSize - 1) / PageSize
}

// Offset returns the index of the first poem on page.
func Offset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}

// ParsePage reads the "page" parameter from a raw query string.
// Missing, non-numeric and non-positive values all mean page 1.
// Pages beyond the last one are kept; they simply render empty.
func ParsePage(rawQuery string) int {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return 1
	}
	p, err := strconv.Atoi(q.Get("page"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// PageFromLocation extracts the page from a location such as "/history?page=2".
func PageFromLocation(location string) int {
	u, err := url.Parse(location)
	if err != nil {
		return 1
	}
	return ParsePage(u.RawQuery)
}

// PageURL is the list location for page.
func PageURL(page int) string {
	return fmt.Sprintf("%s?page=%d", HistoryPath, page)
}

// DetailLink is the location of a single poem, remembering the list page it was opened from.
func DetailLink(id string, page int) string {
	return fmt.Sprintf("/poem/%s?page=%d", url.PathEscape(id), page)
}

// BackLink returns the list location a detail view should return to,
// given the detail view's own raw query string.
func BackLink(rawQuery string) string {
	return PageURL(ParsePage(rawQuery))
}
