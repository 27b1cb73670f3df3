package intake

import (
	"fmt"
	"time"
)

// Source names, matching Alert.Source values.
const (
	SourceDatadog   = "datadog"
	SourceSentry    = "sentry"
	SourcePagerDuty = "pagerduty"
)

// maxTitleLen truncates title to the DB limit (spec §4.4).
const maxTitleLen = 500

// ParsedAlert is a source-normalized view of a webhook payload, ready
// to become a domain.Alert.
type ParsedAlert struct {
	ExternalID     string
	Title          string
	Message        string
	AlertTimestamp time.Time
	Tags           []string
}

// ParseDatadog extracts a ParsedAlert from a Datadog webhook payload:
//
//	{"id": "...", "title": "...", "body": "...", "last_updated": "...", "tags": [...]}
func ParseDatadog(payload map[string]any) (*ParsedAlert, error) {
	id, _ := payload["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: missing 'id' field in datadog payload", ErrInvalidPayload)
	}

	title, _ := payload["title"].(string)
	if title == "" {
		title = "Datadog Alert"
	}
	message, _ := payload["body"].(string)

	ts := parseTimestampOrNow(stringField(payload, "last_updated"))

	return &ParsedAlert{
		ExternalID:     id,
		Title:          truncate(title, maxTitleLen),
		Message:        message,
		AlertTimestamp: ts,
		Tags:           stringSlice(payload["tags"]),
	}, nil
}

// ParseSentry extracts a ParsedAlert from a Sentry webhook payload,
// handling both the nested issue-alert shape and the flat event shape.
func ParseSentry(payload map[string]any) (*ParsedAlert, error) {
	var id, title, message, tsStr string

	if data, ok := payload["data"].(map[string]any); ok {
		if issue, ok := data["issue"].(map[string]any); ok {
			id, _ = issue["id"].(string)
			title, _ = issue["title"].(string)
			if title == "" {
				title = "Sentry Issue"
			}
			event, _ := data["event"].(map[string]any)
			message = stringField(event, "message")
			if message == "" {
				if metadata, ok := issue["metadata"].(map[string]any); ok {
					message = stringField(metadata, "value")
				}
			}
			tsStr = stringField(event, "timestamp")
			if tsStr == "" {
				tsStr = stringField(issue, "lastSeen")
			}
		}
	}

	if id == "" {
		id = stringField(payload, "id")
		if id == "" {
			id = stringField(payload, "event_id")
		}
		title = stringField(payload, "title")
		if title == "" {
			title = stringField(payload, "message")
		}
		if title == "" {
			title = "Sentry Event"
		}
		message = stringField(payload, "message")
		tsStr = stringField(payload, "timestamp")
	}

	if id == "" {
		return nil, fmt.Errorf("%w: missing event/issue id in sentry payload", ErrInvalidPayload)
	}

	return &ParsedAlert{
		ExternalID:     id,
		Title:          truncate(title, maxTitleLen),
		Message:        message,
		AlertTimestamp: parseTimestampOrNow(tsStr),
		Tags:           stringSlice(payload["tags"]),
	}, nil
}

// ParsePagerDuty extracts a ParsedAlert from a PagerDuty v3 webhook
// payload, reading the alert fields from event.data, or from the
// top-level payload when event.data is absent. This envelope shape is
// not ported from a sample payload.
func ParsePagerDuty(payload map[string]any) (*ParsedAlert, error) {
	event, _ := payload["event"].(map[string]any)
	data, _ := event["data"].(map[string]any)
	if data == nil {
		data = payload
	}

	id := stringField(data, "id")
	if id == "" {
		return nil, fmt.Errorf("%w: missing incident id in pagerduty payload", ErrInvalidPayload)
	}

	title := stringField(data, "title")
	if title == "" {
		title = "PagerDuty Incident"
	}
	message := stringField(data, "description")

	return &ParsedAlert{
		ExternalID:     id,
		Title:          truncate(title, maxTitleLen),
		Message:        message,
		AlertTimestamp: parseTimestampOrNow(stringField(event, "occurred_at")),
	}, nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if existing, ok := v.([]string); ok {
			return existing
		}
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func parseTimestampOrNow(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	return time.Now().UTC()
}
