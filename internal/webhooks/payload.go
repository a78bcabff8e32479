package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmespath/go-jmespath"
)

// Event is a domain event to be delivered. Fields holds the event-specific
// public values (job id, status, download reference); type and id are added
// to the payload so receivers can route and deduplicate.
type Event struct {
	Type       string
	ID         string
	OccurredAt time.Time
	Fields     map[string]any
}

// BuildPayload serializes the event to canonical JSON (encoding/json emits
// map keys in sorted order, so equal events always produce identical bytes).
// When the tenant configured a payload filter, the JMESPath projection is
// applied before serialization; the envelope fields survive the projection so
// the payload always carries event and event_id.
func BuildPayload(e Event, filter string) ([]byte, error) {
	body := map[string]any{}
	for k, v := range e.Fields {
		body[k] = v
	}
	if filter != "" {
		projected, err := jmespath.Search(filter, normalize(body))
		if err != nil {
			return nil, fmt.Errorf("payload filter: %w", err)
		}
		m, ok := projected.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("payload filter must project an object, got %T", projected)
		}
		body = m
	}
	body["event"] = e.Type
	body["event_id"] = e.ID
	body["occurred_at"] = e.OccurredAt.UTC().Format(time.RFC3339)
	return json.Marshal(body)
}

// normalize round-trips through JSON so the filter sees plain maps/slices
// regardless of the concrete Go types the caller put in Fields.
func normalize(v map[string]any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
