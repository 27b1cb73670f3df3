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

// Incident holds the schema definition for the Incident entity.
type Incident struct {
	ent.Schema
}

// Fields of the Incident.
func (Incident) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.String("title"),
		field.Enum("severity").
			Values("info", "warning", "error", "critical").
			Default("warning"),
		field.Enum("status").
			Values("open", "investigating", "resolved", "closed").
			Default("open"),

		field.String("assigned_team").
			Default("unassigned"),
		field.String("assigned_user").
			Optional().
			Nillable(),

		field.Text("summary").
			Optional(),
		field.JSON("summary_citations", []map[string]interface{}{}).
			Optional(),
		field.JSON("next_steps", []string{}).
			Optional(),

		field.JSON("affected_services", []string{}).
			Comment("set semantics, persisted as an ordered list with no duplicates"),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Time("resolved_at").
			Optional().
			Nillable(),
		field.Time("closed_at").
			Optional().
			Nillable(),

		field.Int64("time_to_acknowledge").
			Optional().
			Nillable().
			Comment("seconds"),
		field.Int64("time_to_resolve").
			Optional().
			Nillable().
			Comment("seconds"),

		field.JSON("incident_embedding", []float64{}).
			Optional().
			Nillable().
			Comment("fixed-dimension unit vector; dimension mismatch must raise at persist time"),
	}
}

// Edges of the Incident.
func (Incident) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("alerts", Alert.Type),
		edge.To("actions", IncidentAction.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Incident.
func (Incident) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "created_at"),
		index.Fields("status", "severity"),
		index.Fields("assigned_team", "status"),
		index.Fields("severity", "created_at"),
	}
}

// Annotations. The incident_embedding column gets an ivfflat ANN index
// via pkg/database/migrations.go when pgvector is available — not
// expressible through ent's schema annotations for a plain array column.
func (Incident) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
