package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

func TestPgVector(t *testing.T) {
	assert.Equal(t, "[0]", pgVector(nil))
	assert.Equal(t, "[0]", pgVector([]float32{}))
	assert.Equal(t, "[0.500000]", pgVector([]float32{0.5}))
	assert.Equal(t, "[1.000000,-0.250000]", pgVector([]float32{1, -0.25}))
}

func TestSimilarityQuery(t *testing.T) {
	query, args := similarityQuery("[0.500000]", 5, "")

	assert.Contains(t, query, "> 0.7")
	assert.Contains(t, query, "ORDER BY similarity DESC")
	assert.Contains(t, query, "LIMIT $2")
	assert.NotContains(t, query, "category =")
	require.Len(t, args, 2)
	assert.Equal(t, "[0.500000]", args[0])
	assert.Equal(t, 5, args[1])
}

func TestSimilarityQueryWithCategory(t *testing.T) {
	query, args := similarityQuery("[0.500000]", 10, model.CategoryInterested)

	assert.Contains(t, query, "e.category = $2")
	assert.Contains(t, query, "LIMIT $3")
	require.Len(t, args, 3)
	assert.Equal(t, "Interested", args[1])
	assert.Equal(t, 10, args[2])
}

func TestDisabledStoreNoOps(t *testing.T) {
	s, err := New(context.Background(), "", nil, nil, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	ctx := context.Background()
	rec := model.EmailRecord{ID: "x", Subject: "s", Text: "t"}

	assert.NoError(t, s.Upsert(ctx, rec))

	similar, err := s.QuerySimilar(ctx, "anything", 5, "")
	assert.NoError(t, err)
	assert.Nil(t, similar)

	deleted, err := s.Cleanup(ctx, 90)
	assert.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestContextualReplyWithoutChat(t *testing.T) {
	s, err := New(context.Background(), "", nil, nil, zap.NewNop())
	require.NoError(t, err)

	got := s.ContextualReply(context.Background(), model.EmailRecord{}, nil)
	assert.Equal(t, "AI reply generation not available - API key not configured", got)
}

func TestInsightsWithoutSimilarEmails(t *testing.T) {
	s, err := New(context.Background(), "", nil, nil, zap.NewNop())
	require.NoError(t, err)

	got := s.Insights(context.Background(), model.EmailRecord{}, nil)
	assert.Equal(t, []string{"No similar emails found for insights"}, got)
}

func TestSimilarContext(t *testing.T) {
	long := strings.Repeat("a", 250)
	similar := []model.SimilarEmail{
		{Email: model.EmailRecord{Subject: "one", Text: "short"}, Similarity: 0.9},
		{Email: model.EmailRecord{Subject: "two", Text: long}, Similarity: 0.85},
		{Email: model.EmailRecord{Subject: "three", Text: "x"}, Similarity: 0.8},
		{Email: model.EmailRecord{Subject: "four", Text: "dropped"}, Similarity: 0.75},
	}

	got := similarContext(similar)

	assert.Contains(t, got, "Subject: one")
	assert.Contains(t, got, "Subject: three")
	assert.NotContains(t, got, "four")
	assert.Contains(t, got, strings.Repeat("a", 200)+"...")
	assert.NotContains(t, got, strings.Repeat("a", 201))
}
