package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"severity":"critical","team":"payments","confidence":0.92}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.Classify(context.Background(), "payment gateway timing out")
	require.NoError(t, err)
	assert.Equal(t, "critical", result.Severity)
	assert.Equal(t, "payments", result.Team)
	assert.InDelta(t, 0.92, result.Confidence, 0.0001)
}

func TestClassify_NonTwoXX_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Classify(context.Background(), "whatever")
	assert.Error(t, err)
}

func TestClassify_MalformedBody_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Classify(context.Background(), "whatever")
	assert.Error(t, err)
}

func TestClassify_MissingRequiredKey_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"confidence":0.5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Classify(context.Background(), "whatever")
	assert.Error(t, err)
}

func TestExtractEntities_PartialResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service_name":"checkout-api"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.ExtractEntities(context.Background(), "checkout-api 500s spiking")
	require.NoError(t, err)
	require.NotNil(t, result.ServiceName)
	assert.Equal(t, "checkout-api", *result.ServiceName)
	assert.Nil(t, result.Region)
}

func TestCall_TransportError_DoesNotPanic(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	_, err := c.Classify(context.Background(), "text")
	assert.Error(t, err)
}
