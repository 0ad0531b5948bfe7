package core

import (
	"strings"
	"time"
)

// ReportFilter is the raw, untrusted filter input from a query string or
// CLI flags.
type ReportFilter struct {
	Search      string
	Responsible string
	DateFrom    string
	DateTo      string
	Status      string
	Feature     string
	Environment string
	SortBy      string
	SortOrder   string
}

// SortKey is a whitelisted report ordering column.
type SortKey string

const (
	SortTitle     SortKey = "title"
	SortDate      SortKey = "date"
	SortMadeBy    SortKey = "made_by"
	SortCreatedAt SortKey = "created_at"
)

// ReportQuery is a validated filter ready for the store. OwnerID is set
// for non-admin callers and always applied.
type ReportQuery struct {
	OwnerID     string
	Search      string
	Responsible string
	Feature     string
	Environment string
	DateFrom    *time.Time
	DateTo      *time.Time
	Status      Status
	Sort        SortKey
	Descending  bool

	// Ignored names the filter inputs that could not be parsed and were dropped.
	Ignored []string
}

// BuildReportQuery turns a raw filter into a ReportQuery scoped to id.
// Unparsable dates are ignored rather than rejected; unknown sort keys fall
// back to created_at and unknown directions to descending.
func BuildReportQuery(id Identity, f ReportFilter) ReportQuery {
	q := ReportQuery{
		Search:      strings.TrimSpace(f.Search),
		Responsible: strings.TrimSpace(f.Responsible),
		Feature:     strings.TrimSpace(f.Feature),
		Environment: strings.TrimSpace(f.Environment),
		Sort:        SortCreatedAt,
		Descending:  true,
	}

	if !id.IsAdmin() {
		q.OwnerID = id.ID
	}

	if raw := strings.TrimSpace(f.DateFrom); raw != "" {
		if d, ok := ParseISODate(raw); ok {
			q.DateFrom = &d
		} else {
			q.Ignored = append(q.Ignored, "date_from="+raw)
		}
	}
	if raw := strings.TrimSpace(f.DateTo); raw != "" {
		if d, ok := ParseISODate(raw); ok {
			q.DateTo = &d
		} else {
			q.Ignored = append(q.Ignored, "date_to="+raw)
		}
	}

	if raw := strings.TrimSpace(f.Status); raw != "" {
		q.Status = Status(strings.ToUpper(raw))
	}

	switch key := SortKey(strings.ToLower(strings.TrimSpace(f.SortBy))); key {
	case SortTitle, SortDate, SortMadeBy, SortCreatedAt:
		q.Sort = key
	case "":
	default:
		q.Ignored = append(q.Ignored, "sort_by="+f.SortBy)
	}

	switch strings.ToLower(strings.TrimSpace(f.SortOrder)) {
	case "asc":
		q.Descending = false
	case "desc", "":
	default:
		q.Ignored = append(q.Ignored, "sort_order="+f.SortOrder)
	}

	return q
}
