package handler

import (
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// ListQuery holds the paging parameters shared by list endpoints
type ListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// DateRangeQuery bounds a listing by creation time. Both ends are inclusive;
// a bare date as date_to covers that whole day.
type DateRangeQuery struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

// parse returns the bounds, or ok=false when either is malformed
func (q DateRangeQuery) parse() (from, to *time.Time, ok bool) {
	from, ok = parseTimeParam(q.DateFrom, false)
	if !ok {
		return nil, nil, false
	}
	to, ok = parseTimeParam(q.DateTo, true)
	if !ok {
		return nil, nil, false
	}
	return from, to, true
}

func parseTimeParam(raw string, endOfDay bool) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// parseOptionalUUID parses s when present; nil for an empty string
func parseOptionalUUID(s *string) (*uuid.UUID, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}
