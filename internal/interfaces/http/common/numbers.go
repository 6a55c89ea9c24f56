package common

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/wellnest/survey-api/internal/survey/application"
)

// ParsePositiveInt parses positive integers with fallback.
func ParsePositiveInt(value string, fallback int) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback, false
	}
	return parsed, true
}

// ParsePaging reads page, limit, sort and order query parameters.
// "sort=-title" and "sort=title&order=desc" are equivalent.
func ParsePaging(query url.Values) application.Paging {
	page, _ := ParsePositiveInt(query.Get("page"), 1)
	limit, _ := ParsePositiveInt(query.Get("limit"), 0)
	return application.Paging{
		Page:  page,
		Limit: limit,
		Sort:  strings.TrimSpace(query.Get("sort")),
		Desc:  strings.EqualFold(strings.TrimSpace(query.Get("order")), "desc"),
	}
}
