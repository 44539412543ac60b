package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/connector/core"
)

func offsetConfig(batchSize int) *config.DataSourceConfig {
	cfg := config.NewDataSourceConfig("https://api.example.com/items")
	cfg.BatchSize = batchSize
	cfg.ApplyDefaults()
	return cfg
}

func TestOffsetStateExactFields(t *testing.T) {
	cfg := offsetConfig(10)

	state := nextState(cfg, map[string]interface{}{
		"total": float64(25), "offset": float64(0), "limit": float64(10),
	}, nil, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, 10, state.NextOffset)

	state = nextState(cfg, map[string]interface{}{
		"total": float64(25), "offset": float64(20), "limit": float64(10),
	}, nil, 5)
	assert.False(t, state.HasMore)
}

func TestOffsetStateFullBatchHeuristic(t *testing.T) {
	cfg := offsetConfig(10)

	// No bookkeeping fields: a full batch means assume more.
	state := nextState(cfg, map[string]interface{}{}, nil, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, 10, state.NextOffset)

	prior := &core.PaginationState{NextOffset: 10}
	state = nextState(cfg, map[string]interface{}{}, prior, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, 20, state.NextOffset)

	// Short batch terminates.
	state = nextState(cfg, map[string]interface{}{}, prior, 4)
	assert.False(t, state.HasMore)

	// Empty page terminates even though itemCount >= 0.
	state = nextState(cfg, map[string]interface{}{}, prior, 0)
	assert.False(t, state.HasMore)
}

func TestCursorState(t *testing.T) {
	cfg := offsetConfig(10)
	cfg.Pagination.Type = config.PaginationCursor

	state := nextState(cfg, map[string]interface{}{"next_cursor": "abc"}, nil, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, "abc", state.NextCursor)

	state = nextState(cfg, map[string]interface{}{"nextPageToken": "tok"}, nil, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, "tok", state.NextCursor)

	// No cursor field ends the loop regardless of batch fullness.
	state = nextState(cfg, map[string]interface{}{"items": []interface{}{}}, nil, 10)
	assert.False(t, state.HasMore)
}

func TestPageState(t *testing.T) {
	cfg := offsetConfig(10)
	cfg.Pagination.Type = config.PaginationPage

	state := nextState(cfg, map[string]interface{}{
		"page": float64(1), "total_pages": float64(3),
	}, nil, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, 2, state.NextPage)

	state = nextState(cfg, map[string]interface{}{
		"page": float64(3), "total_pages": float64(3),
	}, nil, 5)
	assert.False(t, state.HasMore)

	// Heuristic fallback advances from the prior page.
	prior := &core.PaginationState{NextPage: 2}
	state = nextState(cfg, map[string]interface{}{}, prior, 10)
	assert.True(t, state.HasMore)
	assert.Equal(t, 3, state.NextPage)
}

func TestBuildPageParams(t *testing.T) {
	cfg := offsetConfig(50)
	cfg.Params = map[string]string{"status": "published"}

	params := buildPageParams(cfg, nil, time.Time{})
	assert.Equal(t, "50", params["limit"])
	assert.Equal(t, "published", params["status"])
	_, hasOffset := params["offset"]
	assert.False(t, hasOffset)

	state := &core.PaginationState{HasMore: true, NextOffset: 100}
	params = buildPageParams(cfg, state, time.Time{})
	assert.Equal(t, "100", params["offset"])
}

func TestBuildPageParamsIncrementalSince(t *testing.T) {
	cfg := offsetConfig(10)
	since := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)

	params := buildPageParams(cfg, nil, since)
	assert.Equal(t, "2026-08-01T12:30:00Z", params["since"])
}

func TestBuildPageParamsCursorAndPage(t *testing.T) {
	cfg := offsetConfig(10)
	cfg.Pagination.Type = config.PaginationCursor
	params := buildPageParams(cfg, &core.PaginationState{NextCursor: "abc"}, time.Time{})
	assert.Equal(t, "abc", params["cursor"])

	cfg.Pagination.Type = config.PaginationPage
	params = buildPageParams(cfg, &core.PaginationState{NextPage: 3}, time.Time{})
	assert.Equal(t, "3", params["page"])
}
