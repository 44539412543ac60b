package api

import (
	"strconv"
	"time"

	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/connector/core"
)

// maxPageRequests caps the pagination loop so a misbehaving API cannot make
// one sync consume unbounded requests. Hitting the cap is logged as a
// warning, not treated as an error.
const maxPageRequests = 100

// cursorFields are the response fields checked, in order, for the next
// cursor in cursor-mode pagination.
var cursorFields = []string{"next_cursor", "nextCursor", "nextPageToken"}

// buildPageParams returns the query parameters for the next page request:
// the source's static params, the batch limit, the pagination position from
// the prior page's state, and a since filter when syncing incrementally.
func buildPageParams(cfg *config.DataSourceConfig, state *core.PaginationState, since time.Time) map[string]string {
	params := make(map[string]string, len(cfg.Params)+3)
	for k, v := range cfg.Params {
		params[k] = v
	}

	p := cfg.Pagination
	params[p.LimitParam] = strconv.Itoa(cfg.BatchSize)

	switch p.Type {
	case config.PaginationOffset:
		if state != nil && state.NextOffset > 0 {
			params[p.OffsetParam] = strconv.Itoa(state.NextOffset)
		}
	case config.PaginationCursor:
		if state != nil && state.NextCursor != "" {
			params[p.CursorParam] = state.NextCursor
		}
	case config.PaginationPage:
		if state != nil && state.NextPage > 0 {
			params[p.PageParam] = strconv.Itoa(state.NextPage)
		}
	}

	if !since.IsZero() {
		params[p.SinceParam] = since.UTC().Format(time.RFC3339)
	}
	return params
}

// nextState derives the pagination state for the following request from one
// page's payload and the number of items it contributed.
//
// Offset and page modes prefer exact bookkeeping fields from the response;
// without them they fall back to "a full batch means more data". The
// fallback is imprecise when the final page happens to exactly match the
// batch size: one extra empty request is made before termination.
func nextState(cfg *config.DataSourceConfig, payload map[string]interface{}, prior *core.PaginationState, itemCount int) core.PaginationState {
	switch cfg.Pagination.Type {
	case config.PaginationCursor:
		return nextCursorState(payload)
	case config.PaginationPage:
		return nextPageState(payload, prior, itemCount, cfg.BatchSize)
	default:
		return nextOffsetState(payload, prior, itemCount, cfg.BatchSize)
	}
}

func nextOffsetState(payload map[string]interface{}, prior *core.PaginationState, itemCount, batchSize int) core.PaginationState {
	total, haveTotal := intField(payload, "total")
	offset, haveOffset := intField(payload, "offset")
	limit, haveLimit := intField(payload, "limit")

	if haveTotal && haveOffset && haveLimit {
		next := offset + limit
		return core.PaginationState{
			HasMore:    next < total,
			NextOffset: next,
		}
	}

	priorOffset := 0
	if prior != nil {
		priorOffset = prior.NextOffset
	}
	return core.PaginationState{
		HasMore:    itemCount >= batchSize && itemCount > 0,
		NextOffset: priorOffset + itemCount,
	}
}

func nextCursorState(payload map[string]interface{}) core.PaginationState {
	for _, field := range cursorFields {
		if cursor, ok := payload[field].(string); ok && cursor != "" {
			return core.PaginationState{HasMore: true, NextCursor: cursor}
		}
	}
	return core.PaginationState{HasMore: false}
}

func nextPageState(payload map[string]interface{}, prior *core.PaginationState, itemCount, batchSize int) core.PaginationState {
	page, havePage := intField(payload, "page")
	totalPages, haveTotalPages := intField(payload, "total_pages")

	if havePage && haveTotalPages {
		return core.PaginationState{
			HasMore:  page < totalPages,
			NextPage: page + 1,
		}
	}

	priorPage := 1
	if prior != nil && prior.NextPage > 0 {
		priorPage = prior.NextPage
	}
	return core.PaginationState{
		HasMore:  itemCount >= batchSize && itemCount > 0,
		NextPage: priorPage + 1,
	}
}

// intField reads a numeric payload field. JSON numbers decode as float64;
// sources occasionally send numbers as strings, tolerated here.
func intField(payload map[string]interface{}, key string) (int, bool) {
	switch v := payload[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}
