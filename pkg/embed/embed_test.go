package embed

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_UnitNorm(t *testing.T) {
	vec := Text("High CPU usage on the api service in production")
	norm := Norm(vec)
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestText_EmptyInput_ZeroVector(t *testing.T) {
	vec := Text("")
	assert.Equal(t, Dim, len(vec))
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestText_StopwordsOnly_ZeroVector(t *testing.T) {
	vec := Text("incident service services")
	assert.Zero(t, Norm(vec))
}

func TestText_Deterministic(t *testing.T) {
	a := Text("database connection pool exhausted")
	b := Text("database connection pool exhausted")
	assert.Equal(t, a, b)
}

func TestTokens_DropsStopwordsAndLowercases(t *testing.T) {
	toks := Tokens("Service INCIDENT affecting db-cluster")
	assert.NotContains(t, toks, "service")
	assert.NotContains(t, toks, "incident")
	assert.Contains(t, toks, "db")
	assert.Contains(t, toks, "cluster")
}

func TestJaccardSimilarity(t *testing.T) {
	a := []string{"pool", "usage", "high"}
	b := []string{"pool", "usage", "low"}
	sim := JaccardSimilarity(a, b)
	assert.InDelta(t, 2.0/4.0, sim, 1e-9)
}

func TestJaccardSimilarity_BothEmpty(t *testing.T) {
	assert.Zero(t, JaccardSimilarity(nil, nil))
}

func TestL2Distance_Zero(t *testing.T) {
	v := Text("some text")
	assert.InDelta(t, 0.0, L2Distance(v, v), 1e-9)
}

func TestL2Distance_OrthogonalUnitVectors(t *testing.T) {
	a := make([]float64, 4)
	b := make([]float64, 4)
	a[0] = 1
	b[1] = 1
	assert.InDelta(t, math.Sqrt(2), L2Distance(a, b), 1e-9)
}

func TestCache_SetAndGet(t *testing.T) {
	c := NewCache(1 * time.Minute)
	v := Text("cache me")
	c.Set("cache me", v)

	got, ok := c.Get("cache me")
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestCache_Miss(t *testing.T) {
	c := NewCache(1 * time.Minute)
	_, ok := c.Get("never set")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(30 * time.Millisecond)
	c.Set("expiring", Text("expiring"))

	_, ok := c.Get("expiring")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get("expiring")
	assert.False(t, ok)
}

func TestCache_TextCached_ComputesOnce(t *testing.T) {
	c := NewCache(1 * time.Minute)
	first := c.TextCached("repeat text")
	second := c.TextCached("repeat text")
	assert.Equal(t, first, second)
}
