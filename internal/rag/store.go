// Package rag provides the optional semantic index over email records:
// embedding storage in Postgres/pgvector, cosine-similarity retrieval, and
// retrieval-augmented reply generation. The whole subsystem degrades to
// no-ops when the vector store or the embedding provider is unconfigured.
package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

// similarityThreshold is the minimum cosine similarity for a stored vector
// to count as a match.
const similarityThreshold = 0.7

// contextEmails is how many of the highest-similarity results feed the
// contextual reply prompt.
const contextEmails = 3

// completer is the slice of the classifier the reply generators need.
// *classify.Classifier satisfies it.
type completer interface {
	Configured() bool
	Complete(
		ctx context.Context,
		system, user string,
		maxTokens int,
		temperature float32,
	) (string, error)
}

// Store is the embedding store. A Store built without a database pool or
// embedder reports Enabled() == false and silently no-ops every write,
// returns empty results for every query, and deletes nothing on sweeps.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	chat     completer
	logger   *zap.Logger
}

// New connects to the vector store and prepares its schema. An empty
// postgresURL or a nil embedder yields a disabled store rather than an
// error; the subsystem is optional.
func New(
	ctx context.Context,
	postgresURL string,
	embedder Embedder,
	chat completer,
	logger *zap.Logger,
) (*Store, error) {
	s := &Store{chat: chat, logger: logger}

	if postgresURL == "" || embedder == nil {
		logger.Warn("vector store or embedding provider not configured, semantic features disabled")
		return s, nil
	}

	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging vector store: %w", err)
	}

	s.pool = pool
	s.embedder = embedder

	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("vector store initialized")
	return s, nil
}

// Enabled reports whether the semantic subsystem is active. The flag is
// fixed at construction.
func (s *Store) Enabled() bool {
	return s.pool != nil && s.embedder != nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// initSchema enables pgvector and creates the embeddings table and its
// cosine ANN index.
func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS email_embeddings (
			id UUID PRIMARY KEY,
			email_id VARCHAR(255) UNIQUE NOT NULL,
			subject TEXT,
			content TEXT,
			embedding VECTOR(1536),
			category VARCHAR(50),
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS email_embeddings_embedding_idx
			ON email_embeddings USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("initializing vector schema: %w", err)
		}
	}

	return nil
}

// Upsert embeds the record's subject and body and writes the row keyed by
// email ID, overwriting any previous vector. Disabled stores no-op.
func (s *Store) Upsert(ctx context.Context, rec model.EmailRecord) error {
	if !s.Enabled() {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, rec.Subject+"\n\n"+rec.Text)
	if err != nil {
		return fmt.Errorf("embedding record %s: %w", rec.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO email_embeddings (id, email_id, subject, content, embedding, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email_id)
		DO UPDATE SET
			subject = EXCLUDED.subject,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			category = EXCLUDED.category`,
		rec.ID, rec.ID, rec.Subject, rec.Text,
		pgVector(embedding), string(rec.Category),
	)
	if err != nil {
		return fmt.Errorf("storing embedding for %s: %w", rec.ID, err)
	}

	s.logger.Debug("stored embedding", zap.String("id", rec.ID))
	return nil
}

// QuerySimilar embeds the query text and returns stored emails with
// cosine similarity above the threshold, optionally restricted to one
// category, ordered by similarity descending and capped at limit.
// A disabled store returns an empty result, not an error.
func (s *Store) QuerySimilar(
	ctx context.Context,
	text string,
	limit int,
	category model.Category,
) ([]model.SimilarEmail, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	queryEmbedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	query, args := similarityQuery(pgVector(queryEmbedding), limit, category)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying similar emails: %w", err)
	}
	defer rows.Close()

	var results []model.SimilarEmail
	for rows.Next() {
		var (
			emailID, subject, content string
			cat                       *string
			similarity                float64
		)
		if err := rows.Scan(&emailID, &subject, &content, &cat, &similarity); err != nil {
			return nil, fmt.Errorf("scanning similarity row: %w", err)
		}

		sim := model.SimilarEmail{
			Email: model.EmailRecord{
				ID:      emailID,
				Subject: subject,
				Text:    content,
			},
			Similarity: similarity,
		}
		if cat != nil {
			sim.Email.Category = model.Category(*cat)
		}
		results = append(results, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading similarity rows: %w", err)
	}

	return results, nil
}

// similarityQuery builds the similarity SQL with its positional arguments.
// Split out so the threshold, ordering, and limit semantics are testable
// without a database.
func similarityQuery(vector string, limit int, category model.Category) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT
			e.email_id,
			e.subject,
			e.content,
			e.category,
			1 - (e.embedding <=> $1) AS similarity
		FROM email_embeddings e
		WHERE 1 - (e.embedding <=> $1) > `)
	sb.WriteString(strconv.FormatFloat(similarityThreshold, 'f', 1, 64))

	args := []any{vector}

	if category != "" {
		args = append(args, string(category))
		sb.WriteString(fmt.Sprintf(" AND e.category = $%d", len(args)))
	}

	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY similarity DESC LIMIT $%d", len(args)))

	return sb.String(), args
}

// ContextualReply generates a reply to the record informed by the texts of
// up to the three highest-similarity results. When the chat client is
// unconfigured it returns an explanatory placeholder.
func (s *Store) ContextualReply(
	ctx context.Context,
	rec model.EmailRecord,
	similar []model.SimilarEmail,
) string {
	if s.chat == nil || !s.chat.Configured() {
		return "AI reply generation not available - API key not configured"
	}

	prompt := fmt.Sprintf(`You are a professional email assistant. Generate a contextual reply based on the current email and similar past emails.

Current Email:
From: %s
Subject: %s
Content: %s

Similar Past Emails (for context):
%s

Generate a professional reply that:
1. Addresses the current email appropriately
2. Uses context from similar past emails to provide relevant information
3. Is professional and helpful
4. Includes a clear call-to-action if appropriate

Reply:`, rec.From, rec.Subject, rec.Text, similarContext(similar))

	reply, err := s.chat.Complete(ctx,
		"You are a professional email assistant. Generate contextual replies using past email context.",
		prompt, 500, 0.7,
	)
	if err != nil {
		s.logger.Error("contextual reply generation failed", zap.Error(err))
		return "Error generating contextual reply"
	}
	if reply == "" {
		return "Unable to generate contextual reply"
	}

	return reply
}

// Insights summarizes patterns across the record and its similar emails as
// a list of bulleted insight lines.
func (s *Store) Insights(
	ctx context.Context,
	rec model.EmailRecord,
	similar []model.SimilarEmail,
) []string {
	if s.chat == nil || !s.chat.Configured() || len(similar) == 0 {
		return []string{"No similar emails found for insights"}
	}

	var sb strings.Builder
	for i, sim := range similar {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf(
			"Subject: %s (Similarity: %.1f%%)",
			sim.Email.Subject, sim.Similarity*100,
		))
	}

	prompt := fmt.Sprintf(`Based on the current email and similar past emails, provide 3-5 key insights:

Current Email:
Subject: %s
From: %s

Similar Past Emails:
%s

Provide insights about:
1. Common patterns or themes
2. Response strategies that worked
3. Important context or background
4. Potential follow-up actions

Format as a bulleted list of insights.`, rec.Subject, rec.From, sb.String())

	content, err := s.chat.Complete(ctx,
		"You are an email analysis assistant. Provide insights based on email patterns and context.",
		prompt, 300, 0.5,
	)
	if err != nil {
		s.logger.Error("insight generation failed", zap.Error(err))
		return []string{"Error generating insights"}
	}

	var insights []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-• ")
		if line != "" {
			insights = append(insights, line)
		}
	}
	if len(insights) == 0 {
		return []string{"No similar emails found for insights"}
	}

	return insights
}

// Cleanup deletes embeddings older than the age cutoff and returns how
// many rows were removed. Disabled stores delete nothing.
func (s *Store) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM email_embeddings WHERE created_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up embeddings: %w", err)
	}

	deleted := tag.RowsAffected()
	s.logger.Info("cleaned up old embeddings", zap.Int64("deleted", deleted))
	return deleted, nil
}

// similarContext renders the top similar emails for the reply prompt.
func similarContext(similar []model.SimilarEmail) string {
	top := similar
	if len(top) > contextEmails {
		top = top[:contextEmails]
	}

	parts := make([]string, 0, len(top))
	for _, sim := range top {
		content := sim.Email.Text
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		parts = append(parts, fmt.Sprintf(
			"Subject: %s\nContent: %s", sim.Email.Subject, content,
		))
	}

	return strings.Join(parts, "\n\n")
}

// pgVector renders a float32 slice in pgvector's text format.
func pgVector(v []float32) string {
	if len(v) == 0 {
		return "[0]"
	}

	buf := make([]byte, 0, len(v)*13+2)
	buf = append(buf, '[')

	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', 6, 32)
	}

	buf = append(buf, ']')
	return string(buf)
}
