package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Alert holds the schema definition for the Alert entity. It documents
// the data model of the alerts table; pkg/storage issues hand-written
// SQL against that table directly (see DESIGN.md).
type Alert struct {
	ent.Schema
}

// Fields of the Alert.
func (Alert) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.String("source").
			Comment("Integration name: datadog, sentry, pagerduty, ..."),
		field.String("external_id").
			Comment("Natural key component, unique together with source"),
		field.String("title"),
		field.Text("message").
			Optional(),
		field.JSON("raw_payload", map[string]interface{}{}).
			Comment("Opaque structured blob retained verbatim"),
		field.Time("alert_timestamp").
			Comment("Event time reported by the source"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),

		field.Enum("severity").
			Values("info", "warning", "error", "critical").
			Optional().
			Nillable(),
		field.String("predicted_team").
			Optional().
			Nillable(),
		field.Float("confidence_score").
			Optional().
			Nillable().
			Comment("[0,1]; set exactly once on successful classification"),
		field.String("classification_source").
			Optional().
			Nillable().
			Comment("rule | fallback_rule | ml"),

		field.String("service_name").Optional().Nillable(),
		field.String("environment").Optional().Nillable(),
		field.String("region").Optional().Nillable(),
		field.String("error_code").Optional().Nillable(),
		field.JSON("entity_sources", map[string]string{}).
			Optional().
			Nillable().
			Comment("field name -> provenance (ml|tags|title)"),
		field.String("entity_source").
			Optional().
			Nillable().
			Comment("unknown | single provenance value | mixed"),

		field.Int64("incident_id").
			Optional().
			Nillable(),
	}
}

// Edges of the Alert.
func (Alert) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("incident", Incident.Type).
			Ref("alerts").
			Unique().
			Annotations(entsql.OnDelete(entsql.SetNull)),
	}
}

// Indexes of the Alert.
func (Alert) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source", "external_id").Unique(),
		index.Fields("incident_id"),
		index.Fields("source"),
		index.Fields("created_at"),
	}
}

func (Alert) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
