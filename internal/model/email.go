package model

import "time"

// Category is one of the five fixed classification outcomes assigned to an
// email record. The zero value means the record has not been classified yet.
type Category string

const (
	CategoryInterested    Category = "Interested"
	CategoryMeetingBooked Category = "Meeting Booked"
	CategoryNotInterested Category = "Not Interested"
	CategorySpam          Category = "Spam"
	CategoryOutOfOffice   Category = "Out of Office"
)

// Categories lists every valid category value.
var Categories = []Category{
	CategoryInterested,
	CategoryMeetingBooked,
	CategoryNotInterested,
	CategorySpam,
	CategoryOutOfOffice,
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryInterested, CategoryMeetingBooked, CategoryNotInterested,
		CategorySpam, CategoryOutOfOffice:
		return true
	}
	return false
}

// Attachment holds metadata about a message attachment. The content itself
// is never stored.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// EmailRecord is the normalized, pipeline-internal representation of one
// email message. The ID is assigned exactly once, at construction, before
// any side effect runs.
type EmailRecord struct {
	ID          string       `json:"id"`
	MessageID   string       `json:"messageId"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Date        time.Time    `json:"date"`
	Text        string       `json:"text"`
	HTML        string       `json:"html,omitempty"`
	Folder      string       `json:"folder"`
	Account     string       `json:"account"`
	Category    Category     `json:"category,omitempty"`
	IsRead      bool         `json:"isRead"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// SimilarEmail pairs a projection of a stored email with its cosine
// similarity to a query, in [0,1]. Produced only by similarity queries,
// never persisted.
type SimilarEmail struct {
	Email      EmailRecord `json:"email"`
	Similarity float64     `json:"similarity"`
}

// Sentiment is the result of sentiment analysis over a single email.
type Sentiment struct {
	Sentiment  string  `json:"sentiment"` // positive, negative, or neutral
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}
