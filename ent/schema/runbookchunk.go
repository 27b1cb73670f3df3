package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RunbookChunk holds the schema definition for a retrievable passage of
// operational documentation.
type RunbookChunk struct {
	ent.Schema
}

// Fields of the RunbookChunk.
func (RunbookChunk) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.String("source").
			Default("runbooks"),
		field.String("source_document").
			Comment("logical file id"),
		field.Int("chunk_index").
			Comment("ordinal within document, unique with source_document"),
		field.String("title").
			Optional(),
		field.Text("content"),
		field.JSON("embedding", []float64{}).
			Optional().
			Nillable().
			Comment("dimension must equal the Embedder's fixed dimension"),
		field.JSON("doc_metadata", map[string]interface{}{}).
			Optional().
			Comment("tags, category, version_hash"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the RunbookChunk.
func (RunbookChunk) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source_document", "chunk_index").Unique(),
		index.Fields("source"),
	}
}

// Annotations. content gets a GIN full-text index and a trigram index
// via pkg/database/migrations.go.
func (RunbookChunk) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{},
	}
}
