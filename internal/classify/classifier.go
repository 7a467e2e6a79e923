// Package classify maps email records to one of five fixed categories using
// a hosted chat-completion model, and exposes the related advisory AI
// operations (reply suggestions, sentiment). Every operation degrades to a
// documented default instead of returning an error: classification must
// never block ingestion.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

// DefaultCategory is substituted whenever classification cannot produce a
// valid label.
const DefaultCategory = model.CategoryNotInterested

// bodyPreviewLen caps how much of the body is embedded in the
// categorization and sentiment prompts.
const bodyPreviewLen = 1000

// chatCompleter is the slice of the OpenAI client the classifier needs.
// *openai.Client satisfies it; tests substitute a stub.
type chatCompleter interface {
	CreateChatCompletion(
		ctx context.Context,
		req openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

// Classifier wraps the chat-completion endpoint. A Classifier built without
// an API key is still usable: every operation returns its degraded default.
type Classifier struct {
	client chatCompleter
	model  string
	logger *zap.Logger
}

// New creates a classifier. An empty apiKey yields an unconfigured
// classifier whose operations all degrade.
func New(apiKey, chatModel string, logger *zap.Logger) *Classifier {
	c := &Classifier{
		model:  chatModel,
		logger: logger,
	}
	if c.model == "" {
		c.model = openai.GPT3Dot5Turbo
	}
	if apiKey != "" {
		c.client = openai.NewClient(apiKey)
	}
	return c
}

// newWithClient is the test seam.
func newWithClient(client chatCompleter, chatModel string, logger *zap.Logger) *Classifier {
	return &Classifier{client: client, model: chatModel, logger: logger}
}

// Configured reports whether a provider is available. The flag is fixed at
// construction.
func (c *Classifier) Configured() bool {
	return c.client != nil
}

// Categorize assigns one of the five categories to the record. On an
// unconfigured client, a request failure, or a label outside the valid set
// it returns DefaultCategory.
func (c *Classifier) Categorize(ctx context.Context, rec model.EmailRecord) model.Category {
	if c.client == nil {
		c.logger.Warn("classifier not configured, using default category")
		return DefaultCategory
	}

	prompt := fmt.Sprintf(`Analyze the following email and categorize it into one of these categories:
- Interested: The email seems to be from a potential client, customer, or business opportunity
- Meeting Booked: The email confirms a meeting, appointment, or call
- Not Interested: The email is not relevant for business opportunities
- Spam: The email is clearly spam or promotional content
- Out of Office: The email is an automated out-of-office reply

Email Details:
From: %s
Subject: %s
Content: %s

Respond with only the category name (e.g., "Interested").`,
		rec.From, rec.Subject, preview(rec.Text, bodyPreviewLen))

	label, err := c.complete(ctx, completionSpec{
		system: "You are an email categorization assistant. Analyze emails and " +
			"categorize them based on their business relevance and content.",
		user:        prompt,
		maxTokens:   50,
		temperature: 0.1,
	})
	if err != nil {
		c.logger.Error("categorization request failed", zap.Error(err))
		return DefaultCategory
	}

	category := model.Category(strings.TrimSpace(label))
	if !category.Valid() {
		c.logger.Warn("invalid category returned, using default",
			zap.String("label", label))
		return DefaultCategory
	}

	return category
}

// SuggestReply generates a single professional reply for the record.
func (c *Classifier) SuggestReply(ctx context.Context, rec model.EmailRecord) string {
	if c.client == nil {
		return "AI reply generation not available - API key not configured"
	}

	prompt := fmt.Sprintf(`Based on the following email, generate a professional and helpful reply. The reply should be:
- Professional and courteous
- Address the sender's needs or questions
- Be concise but informative
- Include a call-to-action if appropriate

Original Email:
From: %s
Subject: %s
Content: %s

Generate a suggested reply:`, rec.From, rec.Subject, rec.Text)

	reply, err := c.complete(ctx, completionSpec{
		system: "You are a professional email assistant. Generate helpful and " +
			"professional email replies.",
		user:        prompt,
		maxTokens:   500,
		temperature: 0.7,
	})
	if err != nil {
		c.logger.Error("reply generation failed", zap.Error(err))
		return "Error generating reply"
	}
	if reply == "" {
		return "Unable to generate reply"
	}

	return reply
}

// numberedItem matches the "1." / "2." markers separating reply options.
var numberedItem = regexp.MustCompile(`\d+\.`)

// SuggestReplyOptions generates count reply options with different tones.
// When the completion cannot be split into options, it returns a
// single-element fallback.
func (c *Classifier) SuggestReplyOptions(
	ctx context.Context,
	rec model.EmailRecord,
	count int,
) []string {
	if c.client == nil {
		return []string{"AI reply generation not available - API key not configured"}
	}
	if count <= 0 {
		count = 3
	}

	prompt := fmt.Sprintf(`Based on the following email, generate %d different professional reply options. Each reply should have a different tone or approach:
1. Formal and professional
2. Friendly and conversational
3. Brief and direct

Original Email:
From: %s
Subject: %s
Content: %s

Generate %d different reply options, numbered 1-%d:`,
		count, rec.From, rec.Subject, rec.Text, count, count)

	content, err := c.complete(ctx, completionSpec{
		system: "You are a professional email assistant. Generate multiple " +
			"reply options with different tones and approaches.",
		user:        prompt,
		maxTokens:   1000,
		temperature: 0.8,
	})
	if err != nil {
		c.logger.Error("reply options generation failed", zap.Error(err))
		return []string{"Error generating reply options"}
	}

	replies := SplitNumbered(content)
	if len(replies) == 0 {
		return []string{"Unable to generate reply options"}
	}

	return replies
}

// SplitNumbered splits a numbered-list completion on its numeric markers
// and trims the resulting fragments, dropping empty ones.
func SplitNumbered(content string) []string {
	var replies []string
	for _, part := range numberedItem.Split(content, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			replies = append(replies, part)
		}
	}
	return replies
}

// AnalyzeSentiment analyzes the sentiment of the record. On any failure it
// returns a neutral result with zero confidence.
func (c *Classifier) AnalyzeSentiment(ctx context.Context, rec model.EmailRecord) model.Sentiment {
	neutral := func(summary string) model.Sentiment {
		return model.Sentiment{Sentiment: "neutral", Confidence: 0, Summary: summary}
	}

	if c.client == nil {
		return neutral("Sentiment analysis not available")
	}

	prompt := fmt.Sprintf(`Analyze the sentiment of this email and provide:
1. Sentiment: positive, negative, or neutral
2. Confidence score: 0-1
3. Brief summary of the sentiment

Email:
From: %s
Subject: %s
Content: %s

Respond in JSON format:
{
  "sentiment": "positive|negative|neutral",
  "confidence": 0.85,
  "summary": "Brief explanation"
}`, rec.From, rec.Subject, preview(rec.Text, bodyPreviewLen))

	content, err := c.complete(ctx, completionSpec{
		system: "You are an email sentiment analysis assistant. Analyze emails " +
			"and provide sentiment analysis in JSON format.",
		user:        prompt,
		maxTokens:   200,
		temperature: 0.1,
	})
	if err != nil {
		c.logger.Error("sentiment analysis failed", zap.Error(err))
		return neutral("Sentiment analysis error")
	}

	var result model.Sentiment
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		c.logger.Error("parsing sentiment analysis failed", zap.Error(err))
		return neutral("Sentiment analysis failed")
	}

	if result.Sentiment == "" {
		result.Sentiment = "neutral"
	}
	if result.Summary == "" {
		result.Summary = "Unable to analyze sentiment"
	}

	return result
}

// Complete runs a single completion with the given prompts and sampling
// settings. Unlike the higher-level operations it returns the transport
// error, so callers that need their own degraded defaults can decide what
// to substitute.
func (c *Classifier) Complete(
	ctx context.Context,
	system, user string,
	maxTokens int,
	temperature float32,
) (string, error) {
	if c.client == nil {
		return "", errors.New("classifier not configured")
	}
	return c.complete(ctx, completionSpec{
		system:      system,
		user:        user,
		maxTokens:   maxTokens,
		temperature: temperature,
	})
}

// completionSpec describes one chat-completion request.
type completionSpec struct {
	system      string
	user        string
	maxTokens   int
	temperature float32
}

// complete performs a single chat completion and returns the trimmed text
// of the first choice.
func (c *Classifier) complete(ctx context.Context, spec completionSpec) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: spec.system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: spec.user,
			},
		},
		MaxTokens:   spec.maxTokens,
		Temperature: spec.temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// preview returns at most n characters of s.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
