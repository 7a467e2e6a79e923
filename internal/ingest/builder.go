// Package ingest normalizes raw IMAP messages into canonical email records.
package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/nhle/inbox-aggregator/internal/imap"
	"github.com/nhle/inbox-aggregator/internal/model"
)

const (
	defaultSubject     = "No Subject"
	defaultFilename    = "unknown"
	defaultContentType = "application/octet-stream"
)

// BuildRecord converts a raw message into a canonical EmailRecord. It is a
// pure function apart from ID generation and clock reads: a fresh identifier
// is assigned here, before any side effect sees the record, and missing
// optional fields are replaced by documented defaults.
func BuildRecord(
	raw *imap.RawMessage,
	account model.AccountConfig,
	folder string,
) model.EmailRecord {
	now := time.Now().UTC()

	rec := model.EmailRecord{
		ID:          uuid.NewString(),
		MessageID:   raw.MessageID,
		Subject:     raw.Subject,
		From:        raw.From,
		To:          raw.To,
		Date:        raw.Date,
		Text:        raw.TextBody,
		HTML:        raw.HTMLBody,
		Folder:      folder,
		Account:     account.Name,
		IsRead:      false,
		Attachments: make([]model.Attachment, 0, len(raw.Attachments)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if rec.Subject == "" {
		rec.Subject = defaultSubject
	}
	if rec.Date.IsZero() {
		rec.Date = now
	}

	for _, att := range raw.Attachments {
		a := model.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
		}
		if a.Filename == "" {
			a.Filename = defaultFilename
		}
		if a.ContentType == "" {
			a.ContentType = defaultContentType
		}
		if a.Size < 0 {
			a.Size = 0
		}
		rec.Attachments = append(rec.Attachments, a)
	}

	return rec
}
