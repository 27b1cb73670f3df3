// Package retrieval implements the Hybrid Retriever (runbook chunks)
// and the Similar-Incident Finder described in spec §4.7/§4.8, grounded
// on original_source's incident_similarity.py scoring formulas.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/embed"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// Weights controls the hybrid scoring formula, overridable via config
// (spec §6's RAG_* env vars).
type Weights struct {
	VectorWeight      float64
	KeywordWeight     float64
	MinScore          float64
	TitleBoost        float64
	ContentBoost      float64
	MinKeywordOverlap float64
}

// RunbookResult is a scored runbook chunk returned by the Hybrid Retriever.
type RunbookResult struct {
	Chunk *domain.RunbookChunk
	Score float64
}

// Retriever runs the Hybrid Retriever and Similar-Incident Finder over
// the storage layer.
type Retriever struct {
	runbooks  *storage.RunbookRepo
	incidents *storage.IncidentRepo
	weights   Weights
}

// NewRetriever constructs a Retriever.
func NewRetriever(runbooks *storage.RunbookRepo, incidents *storage.IncidentRepo, weights Weights) *Retriever {
	return &Retriever{runbooks: runbooks, incidents: incidents, weights: weights}
}

// SearchRunbooks implements spec §4.7: vector score combined with
// keyword score plus substring rerank boosts, capped to 1.0, filtered
// by the score floor, returning up to k results.
func (r *Retriever) SearchRunbooks(ctx context.Context, query string, queryEmbedding []float64, k int) ([]RunbookResult, error) {
	scores := map[int64]float64{}
	chunks := map[int64]*domain.RunbookChunk{}

	vectorOK := false
	if vecCandidates, err := r.runbooks.SearchByEmbeddingL2(ctx, queryEmbedding, k*4); err == nil {
		vectorOK = true
		for _, c := range vecCandidates {
			v := 1.0 / (1.0 + c.Distance)
			scores[c.Chunk.ID] += r.weights.VectorWeight * v
			chunks[c.Chunk.ID] = c.Chunk
		}
	}

	keywordOK := false
	if kwCandidates, err := r.runbooks.KeywordSearch(ctx, query, k*4); err == nil {
		keywordOK = true
		for _, c := range kwCandidates {
			scores[c.Chunk.ID] += r.weights.KeywordWeight * c.Rank
			chunks[c.Chunk.ID] = c.Chunk
		}
	}

	if !vectorOK && !keywordOK {
		return r.jaccardFallback(ctx, query, k)
	}

	return r.finalizeRunbookScores(query, scores, chunks, k), nil
}

func (r *Retriever) jaccardFallback(ctx context.Context, query string, k int) ([]RunbookResult, error) {
	all, err := r.runbooks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: jaccard fallback: %w", err)
	}
	queryTokens := embed.Tokens(query)

	scores := map[int64]float64{}
	chunks := map[int64]*domain.RunbookChunk{}
	for _, c := range all {
		bm25 := embed.JaccardSimilarity(queryTokens, embed.Tokens(c.Title+" "+c.Content))
		scores[c.ID] = r.weights.KeywordWeight * bm25
		chunks[c.ID] = c
	}
	return r.finalizeRunbookScores(query, scores, chunks, k), nil
}

func (r *Retriever) finalizeRunbookScores(query string, scores map[int64]float64, chunks map[int64]*domain.RunbookChunk, k int) []RunbookResult {
	lowerQuery := strings.ToLower(query)
	var out []RunbookResult
	for id, score := range scores {
		c := chunks[id]
		if strings.Contains(strings.ToLower(c.Title), lowerQuery) && lowerQuery != "" {
			score += r.weights.TitleBoost
		}
		if strings.Contains(strings.ToLower(c.Content), lowerQuery) && lowerQuery != "" {
			score += r.weights.ContentBoost
		}
		if score > 1.0 {
			score = 1.0
		}
		if score < r.weights.MinScore {
			continue
		}
		out = append(out, RunbookResult{Chunk: c, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// IncidentResult is a scored similar incident returned by the
// Similar-Incident Finder.
type IncidentResult struct {
	Incident *domain.Incident
	Score    float64
}

// SubjectText builds the synthetic query text for an incident per spec
// §4.8: title + summary + affected services + first-5 alerts' title/message.
func SubjectText(inc *domain.Incident, alerts []*domain.Alert) string {
	var b strings.Builder
	b.WriteString(inc.Title)
	b.WriteString(" ")
	b.WriteString(inc.Summary)
	if len(inc.AffectedServices) > 0 {
		b.WriteString(" services: ")
		b.WriteString(strings.Join(inc.AffectedServices, ","))
	}
	n := len(alerts)
	if n > 5 {
		n = 5
	}
	for _, a := range alerts[:n] {
		b.WriteString(" ")
		b.WriteString(a.Title)
		b.WriteString(" ")
		b.WriteString(a.Message)
	}
	return b.String()
}

// SimilarIncidents implements spec §4.8's relevance-gated, structurally
// boosted retrieval of incidents similar to subject, using the
// Retriever's configured score floor.
func (r *Retriever) SimilarIncidents(ctx context.Context, subject *domain.Incident, subjectAlerts []*domain.Alert, k int) ([]IncidentResult, error) {
	return r.SimilarIncidentsWithMinScore(ctx, subject, subjectAlerts, k, r.weights.MinScore)
}

// SimilarIncidentsWithMinScore is the full form of SimilarIncidents,
// additionally honoring a per-request min_score floor (spec §6's GET
// /incidents/{id}/similar query parameter) in place of the Retriever's
// configured default.
func (r *Retriever) SimilarIncidentsWithMinScore(ctx context.Context, subject *domain.Incident, subjectAlerts []*domain.Alert, k int, minScore float64) ([]IncidentResult, error) {
	if subject.Embedding == nil {
		vec := embed.Text(SubjectText(subject, subjectAlerts))
		if err := r.incidents.UpdateEmbedding(ctx, subject.ID, vec, embed.Dim); err != nil {
			return nil, fmt.Errorf("retrieval: persist subject embedding: %w", err)
		}
		subject.Embedding = vec
	}

	candidates, err := r.incidents.ListOtherWithEmbedding(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: list candidates: %w", err)
	}

	subjectTokens := embed.Tokens(SubjectText(subject, subjectAlerts))
	results := r.scoreIncidentCandidates(subject, subjectTokens, candidates, k, minScore)
	if len(results) > 0 {
		return results, nil
	}

	// Fall back to a full keyword-only pass over every other incident.
	all, err := r.incidents.ListOther(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: keyword fallback list: %w", err)
	}
	return r.scoreIncidentCandidates(subject, subjectTokens, all, k, minScore), nil
}

func (r *Retriever) scoreIncidentCandidates(subject *domain.Incident, subjectTokens []string, candidates []*domain.Incident, k int, minScore float64) []IncidentResult {
	var out []IncidentResult
	for _, cand := range candidates {
		candText := candidateText(cand)
		candTokens := embed.Tokens(candText)
		overlap := embed.JaccardSimilarity(subjectTokens, candTokens)

		sharedService := intersects(subject.AffectedServices, cand.AffectedServices)
		if !sharedService && overlap < r.weights.MinKeywordOverlap {
			continue
		}

		v := 0.0
		if subject.Embedding != nil && cand.Embedding != nil {
			v = 1.0 / (1.0 + embed.L2Distance(subject.Embedding, cand.Embedding))
		}
		score := r.weights.VectorWeight*v + r.weights.KeywordWeight*overlap
		if subject.Severity == cand.Severity {
			score += 0.05
		}
		if sharedService {
			score += 0.10
		}
		if score > 1.0 {
			score = 1.0
		}
		if score < minScore {
			continue
		}
		out = append(out, IncidentResult{Incident: cand, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func candidateText(inc *domain.Incident) string {
	var b strings.Builder
	b.WriteString(inc.Title)
	b.WriteString(" ")
	b.WriteString(inc.Summary)
	if len(inc.AffectedServices) > 0 {
		b.WriteString(" services: ")
		b.WriteString(strings.Join(inc.AffectedServices, ","))
	}
	return b.String()
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
