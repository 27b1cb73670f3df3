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

// IncidentAction holds the schema definition for the append-only audit
// record attached to an Incident.
type IncidentAction struct {
	ent.Schema
}

// Fields of the IncidentAction.
func (IncidentAction) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("incident_id").
			Immutable(),
		field.Enum("action_type").
			Values("status_change", "comment", "alert_added", "alert_removed", "assignment", "escalation").
			Immutable(),
		field.Text("description").
			Immutable(),
		field.String("user").
			Default("system").
			Immutable(),
		field.JSON("extra_metadata", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the IncidentAction.
func (IncidentAction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("incident", Incident.Type).
			Ref("actions").
			Unique().
			Required().
			Immutable().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the IncidentAction.
func (IncidentAction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("incident_id", "timestamp"),
	}
}

func (IncidentAction) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
