package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

type fakeCategorizer struct {
	category model.Category
}

func (f *fakeCategorizer) Categorize(_ context.Context, _ model.EmailRecord) model.Category {
	return f.category
}

type fakeIndexer struct {
	err  error
	puts []model.EmailRecord
}

func (f *fakeIndexer) Put(_ context.Context, rec model.EmailRecord) error {
	f.puts = append(f.puts, rec)
	return f.err
}

type fakeEmbeddings struct {
	err     error
	upserts []model.EmailRecord
}

func (f *fakeEmbeddings) Upsert(_ context.Context, rec model.EmailRecord) error {
	f.upserts = append(f.upserts, rec)
	return f.err
}

type fakeNotifier struct {
	dispatched []model.EmailRecord
}

func (f *fakeNotifier) Dispatch(_ context.Context, rec model.EmailRecord) {
	f.dispatched = append(f.dispatched, rec)
}

func TestProcessInterestedEmailNotifies(t *testing.T) {
	indexer := &fakeIndexer{}
	embeddings := &fakeEmbeddings{}
	notifier := &fakeNotifier{}
	p := NewProcessor(
		&fakeCategorizer{category: model.CategoryInterested},
		indexer, embeddings, notifier, zap.NewNop(),
	)

	rec := model.EmailRecord{ID: "a", Account: "Work"}
	got := p.Process(context.Background(), rec)

	assert.Equal(t, model.CategoryInterested, got.Category)
	require.Len(t, indexer.puts, 1)
	assert.Equal(t, model.CategoryInterested, indexer.puts[0].Category)
	assert.Len(t, embeddings.upserts, 1)
	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, "a", notifier.dispatched[0].ID)
}

func TestProcessOtherCategoriesDoNotNotify(t *testing.T) {
	for _, category := range []model.Category{
		model.CategoryMeetingBooked,
		model.CategoryNotInterested,
		model.CategorySpam,
		model.CategoryOutOfOffice,
	} {
		indexer := &fakeIndexer{}
		notifier := &fakeNotifier{}
		p := NewProcessor(
			&fakeCategorizer{category: category},
			indexer, &fakeEmbeddings{}, notifier, zap.NewNop(),
		)

		p.Process(context.Background(), model.EmailRecord{ID: "b"})

		require.Len(t, indexer.puts, 1, "category %s", category)
		assert.Equal(t, category, indexer.puts[0].Category)
		assert.Empty(t, notifier.dispatched, "category %s", category)
	}
}

func TestProcessIndexFailureStillEmbedsAndNotifies(t *testing.T) {
	indexer := &fakeIndexer{err: errors.New("cluster down")}
	embeddings := &fakeEmbeddings{}
	notifier := &fakeNotifier{}
	p := NewProcessor(
		&fakeCategorizer{category: model.CategoryInterested},
		indexer, embeddings, notifier, zap.NewNop(),
	)

	p.Process(context.Background(), model.EmailRecord{ID: "c"})

	assert.Len(t, embeddings.upserts, 1)
	assert.Len(t, notifier.dispatched, 1)
}

func TestProcessEmbeddingFailureIsAbsorbed(t *testing.T) {
	embeddings := &fakeEmbeddings{err: errors.New("pg unavailable")}
	notifier := &fakeNotifier{}
	p := NewProcessor(
		&fakeCategorizer{category: model.CategoryInterested},
		&fakeIndexer{}, embeddings, notifier, zap.NewNop(),
	)

	p.Process(context.Background(), model.EmailRecord{ID: "d"})

	assert.Len(t, notifier.dispatched, 1)
}

func TestProcessWithoutEmbeddingStore(t *testing.T) {
	p := NewProcessor(
		&fakeCategorizer{category: model.CategorySpam},
		&fakeIndexer{}, nil, &fakeNotifier{}, zap.NewNop(),
	)

	// Must not panic with a nil embedding store.
	got := p.Process(context.Background(), model.EmailRecord{ID: "e"})
	assert.Equal(t, model.CategorySpam, got.Category)
}
