// Package entityfallback recovers alert entities from webhook tag
// payloads and titles when the remote Classifier Gateway's
// extract_entities call fails (spec §4.3).
package entityfallback

import (
	"strings"

	"github.com/opsrelay/opsrelay/pkg/domain"
)

// titleCandidates is the short whitelist of service tokens scanned for
// in a title when no tags supplied a service_name.
var titleCandidates = []string{"api", "db", "cache", "queue", "worker"}

// Apply fills any still-null entity field on alert from raw_payload tags
// (prefixes service:, env:, region:, error:), falling back to a title
// scan for service_name alone, and records provenance ("tags" or
// "title") for each field it touched into provenance. Fields already
// set (by the ML gateway, or by an earlier call) are never overwritten;
// callers pass in the provenance map already populated with any "ml"
// entries so Summarize sees the full picture.
func Apply(alert *domain.Alert, provenance map[string]string) {
	tags := stringTags(alert.RawPayload)
	for _, tag := range tags {
		switch {
		case strings.HasPrefix(tag, "service:") && alert.ServiceName == nil:
			v := strings.TrimPrefix(tag, "service:")
			alert.ServiceName = &v
			provenance["service_name"] = domain.ProvenanceTags
		case strings.HasPrefix(tag, "env:") && alert.Environment == nil:
			v := strings.TrimPrefix(tag, "env:")
			alert.Environment = &v
			provenance["environment"] = domain.ProvenanceTags
		case strings.HasPrefix(tag, "region:") && alert.Region == nil:
			v := strings.TrimPrefix(tag, "region:")
			alert.Region = &v
			provenance["region"] = domain.ProvenanceTags
		case strings.HasPrefix(tag, "error:") && alert.ErrorCode == nil:
			v := strings.TrimPrefix(tag, "error:")
			alert.ErrorCode = &v
			provenance["error_code"] = domain.ProvenanceTags
		}
	}

	if alert.ServiceName == nil && alert.Title != "" {
		lowered := strings.ToLower(alert.Title)
		for _, candidate := range titleCandidates {
			if strings.Contains(lowered, candidate) {
				v := candidate
				alert.ServiceName = &v
				provenance["service_name"] = domain.ProvenanceTitle
				break
			}
		}
	}
}

// Summarize collapses a field->provenance map into the Alert's single
// entity_source summary value: "unknown" if empty, the single value if
// all fields agree, "mixed" otherwise.
func Summarize(provenance map[string]string) string {
	if len(provenance) == 0 {
		return "unknown"
	}
	unique := make(map[string]struct{}, len(provenance))
	for _, v := range provenance {
		unique[v] = struct{}{}
	}
	if len(unique) == 1 {
		for v := range unique {
			return v
		}
	}
	return "mixed"
}

func stringTags(payload map[string]any) []string {
	if payload == nil {
		return nil
	}
	raw, ok := payload["tags"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		// also accept already-typed []string, e.g. from internal construction
		if ss, ok := payload["tags"].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
