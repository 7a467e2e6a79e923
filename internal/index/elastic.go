// Package index persists canonical email records in Elasticsearch and
// exposes the thin query layer over them.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

// ErrNotFound is returned by Get when no document exists for the ID.
var ErrNotFound = errors.New("email not found")

// mapping is the fixed index schema: keyword identifiers, analyzed text
// fields with keyword sub-fields, full-text body, nested attachments.
// One shard, no replicas.
const mapping = `{
  "mappings": {
    "properties": {
      "id": {"type": "keyword"},
      "messageId": {"type": "keyword"},
      "subject": {"type": "text", "analyzer": "standard", "fields": {"keyword": {"type": "keyword"}}},
      "from": {"type": "text", "analyzer": "standard", "fields": {"keyword": {"type": "keyword"}}},
      "to": {"type": "text", "analyzer": "standard", "fields": {"keyword": {"type": "keyword"}}},
      "date": {"type": "date"},
      "text": {"type": "text", "analyzer": "standard"},
      "html": {"type": "text"},
      "folder": {"type": "keyword"},
      "account": {"type": "keyword"},
      "category": {"type": "keyword"},
      "isRead": {"type": "boolean"},
      "attachments": {
        "type": "nested",
        "properties": {
          "filename": {"type": "keyword"},
          "contentType": {"type": "keyword"},
          "size": {"type": "integer"}
        }
      },
      "createdAt": {"type": "date"},
      "updatedAt": {"type": "date"}
    }
  },
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  }
}`

// Store wraps an Elasticsearch index holding email records. The underlying
// client is pooled and safe for concurrent use by all sync workers.
type Store struct {
	es     *elasticsearch.Client
	index  string
	logger *zap.Logger
}

// SearchHit is one search result with its relevance score.
type SearchHit struct {
	Record model.EmailRecord
	Score  float64
}

// New creates a Store for the given Elasticsearch URL and index name.
func New(url, indexName string, logger *zap.Logger) (*Store, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Elasticsearch client: %w", err)
	}

	return &Store{es: es, index: indexName, logger: logger}, nil
}

// EnsureIndex creates the index with its fixed mapping if it does not
// already exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists(
		[]string{s.index},
		s.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("checking index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		s.logger.Info("index already exists", zap.String("index", s.index))
		return nil
	}

	createRes, err := s.es.Indices.Create(
		s.index,
		s.es.Indices.Create.WithBody(strings.NewReader(mapping)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", s.index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("creating index %s: %s", s.index, createRes.String())
	}

	s.logger.Info("created index", zap.String("index", s.index))
	return nil
}

// Put indexes the record under its ID, overwriting any existing document.
func (s *Store) Put(ctx context.Context, rec model.EmailRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record %s: %w", rec.ID, err)
	}

	res, err := s.es.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Index.WithDocumentID(rec.ID),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("indexing record %s: %w", rec.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing record %s: %s", rec.ID, res.String())
	}

	return nil
}

// Get retrieves a record by ID, returning ErrNotFound on a missing
// document.
func (s *Store) Get(ctx context.Context, id string) (*model.EmailRecord, error) {
	res, err := s.es.Get(s.index, id, s.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("getting record %s: %s", id, res.String())
	}

	var doc struct {
		Source model.EmailRecord `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}

	return &doc.Source, nil
}

// UpdateCategory sets the record's category and advances updatedAt.
func (s *Store) UpdateCategory(ctx context.Context, id string, category model.Category) error {
	update := map[string]any{
		"doc": map[string]any{
			"category":  category,
			"updatedAt": time.Now().UTC(),
		},
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshaling category update for %s: %w", id, err)
	}

	res, err := s.es.Update(
		s.index,
		id,
		bytes.NewReader(body),
		s.es.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("updating category for %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("updating category for %s: %s", id, res.String())
	}

	s.logger.Info("updated category",
		zap.String("id", id),
		zap.String("category", string(category)),
	)
	return nil
}

// Search runs a raw query document against the index and returns the
// matching records with their scores and the total hit count.
func (s *Store) Search(ctx context.Context, query json.RawMessage) ([]SearchHit, int, error) {
	res, err := s.es.Search(
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(query)),
		s.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("searching: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("searching: %s", res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading search response: %w", err)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64           `json:"_score"`
				Source model.EmailRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, 0, fmt.Errorf("decoding search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, SearchHit{Record: h.Source, Score: h.Score})
	}

	return hits, parsed.Hits.Total.Value, nil
}
