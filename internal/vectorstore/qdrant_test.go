package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/llamaha/codesem/internal/errors"
)

func TestNewQdrantStore_DefaultsHostAndPort(t *testing.T) {
	s, err := NewQdrantStore(QdrantConfig{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "localhost", s.cfg.Host)
	assert.Equal(t, 6334, s.cfg.Port)
}

func TestNewQdrantStore_InitializesCircuitBreaker(t *testing.T) {
	s, err := NewQdrantStore(QdrantConfig{Host: "example.invalid", Port: 1})
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.breaker)
	assert.True(t, s.breaker.Allow(), "a freshly created breaker should allow requests")
}

func TestCollectionExists_OpenCircuit_ReturnsFallbackError(t *testing.T) {
	s, err := NewQdrantStore(QdrantConfig{Host: "example.invalid", Port: 1})
	require.NoError(t, err)
	defer s.Close()

	s.breaker = cserrors.NewCircuitBreaker("qdrant",
		cserrors.WithMaxFailures(1),
		cserrors.WithResetTimeout(time.Minute))
	s.breaker.RecordFailure()
	require.False(t, s.breaker.Allow())

	exists, err := s.CollectionExists(context.Background(), "proj")
	assert.False(t, exists)
	assert.ErrorIs(t, err, cserrors.ErrCircuitOpen)
}

func TestIsNotFoundErr_MatchesKnownPhrasings(t *testing.T) {
	cases := []string{
		"collection `foo` doesn't exist",
		"collection not found",
		"the requested resource does not exist",
	}
	for _, msg := range cases {
		assert.True(t, isNotFoundErr(errors.New(msg)), msg)
	}
	assert.False(t, isNotFoundErr(errors.New("connection refused")))
}
