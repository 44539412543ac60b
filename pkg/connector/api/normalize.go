package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/connector/core"
)

// Field priority lists for extracting document text and title from
// heterogeneous API payloads.
var (
	textFields  = []string{"content", "text", "body", "description", "message"}
	titleFields = []string{"title", "name", "subject", "headline"}
	idFields    = []string{"id", "_id", "uuid"}
)

// itemContainers are the payload fields checked, in order, for the item
// array when the payload itself is not a list.
var itemContainers = []string{"data", "items", "results"}

// extractItems locates the item array in one page's payload. A payload that
// is itself a list is the array; otherwise known container fields are tried;
// otherwise the whole payload is treated as a single item.
func extractItems(payload interface{}) []interface{} {
	if list, ok := payload.([]interface{}); ok {
		return list
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil
	}

	for _, field := range itemContainers {
		if list, ok := obj[field].([]interface{}); ok {
			return list
		}
	}
	return []interface{}{obj}
}

// normalizeItems maps one page's raw items into canonical documents. Items
// contributing neither text nor title are skipped with a warning, not an
// error: one malformed item never aborts a page.
func normalizeItems(source *core.DataSource, items []interface{}, fetchedAt time.Time, log *zap.Logger) []*core.Content {
	docs := make([]*core.Content, 0, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			log.Warn("skipping non-object item", zap.Int("index", i))
			continue
		}

		doc := normalizeItem(source, item, fetchedAt)
		if doc == nil {
			log.Warn("skipping item with no text or title", zap.Int("index", i))
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func normalizeItem(source *core.DataSource, item map[string]interface{}, fetchedAt time.Time) *core.Content {
	text := firstString(item, textFields)
	title := firstString(item, titleFields)

	if text == "" && title == "" {
		return nil
	}
	if text == "" {
		text = title
	}

	metadata := make(map[string]interface{}, len(item)+3)
	for k, v := range item {
		metadata[k] = v
	}
	metadata["source_name"] = source.Name
	metadata["source_type"] = string(source.Type)
	metadata["fetched_at"] = fetchedAt.UTC().Format(time.RFC3339)

	return &core.Content{
		ID:          itemID(source.ID, item),
		SourceID:    source.ID,
		Title:       title,
		Text:        text,
		Metadata:    metadata,
		LastUpdated: fetchedAt,
		Version:     1,
	}
}

// itemID takes the item's own identity when present. Synthesized IDs are not
// stable across syncs; downstream dedup must not rely on them persisting.
func itemID(sourceID string, item map[string]interface{}) string {
	for _, field := range idFields {
		switch v := item[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return fmt.Sprintf("%s-%d-%s", sourceID, time.Now().UnixNano(), uuid.NewString()[:8])
}

func firstString(item map[string]interface{}, fields []string) string {
	for _, field := range fields {
		if v, ok := item[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
