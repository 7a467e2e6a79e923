package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-aggregator/internal/imap"
	"github.com/nhle/inbox-aggregator/internal/model"
)

func TestBuildRecord(t *testing.T) {
	account := model.AccountConfig{Name: "Work"}
	date := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	raw := &imap.RawMessage{
		UID:       42,
		MessageID: "<abc@example.com>",
		Subject:   "Quarterly review",
		From:      "Alice <alice@example.com>",
		To:        "bob@example.com",
		Date:      date,
		TextBody:  "See attached.",
		HTMLBody:  "<p>See attached.</p>",
		Attachments: []imap.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Size: 2048},
		},
	}

	rec := BuildRecord(raw, account, "INBOX")

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "<abc@example.com>", rec.MessageID)
	assert.Equal(t, "Quarterly review", rec.Subject)
	assert.Equal(t, "Alice <alice@example.com>", rec.From)
	assert.Equal(t, date, rec.Date)
	assert.Equal(t, "See attached.", rec.Text)
	assert.Equal(t, "INBOX", rec.Folder)
	assert.Equal(t, "Work", rec.Account)
	assert.False(t, rec.IsRead)
	assert.Empty(t, rec.Category)
	require.Len(t, rec.Attachments, 1)
	assert.Equal(t, "report.pdf", rec.Attachments[0].Filename)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestBuildRecordDefaults(t *testing.T) {
	account := model.AccountConfig{Name: "Personal"}
	raw := &imap.RawMessage{
		UID:  7,
		From: "noreply@example.com",
		Attachments: []imap.Attachment{
			{Size: -1},
		},
	}

	rec := BuildRecord(raw, account, "Sent")

	assert.Equal(t, "No Subject", rec.Subject)
	assert.False(t, rec.Date.IsZero())
	require.Len(t, rec.Attachments, 1)
	assert.Equal(t, "unknown", rec.Attachments[0].Filename)
	assert.Equal(t, "application/octet-stream", rec.Attachments[0].ContentType)
	assert.Zero(t, rec.Attachments[0].Size)
}

func TestBuildRecordFreshIDs(t *testing.T) {
	account := model.AccountConfig{Name: "Work"}
	raw := &imap.RawMessage{UID: 1, Subject: "dup"}

	first := BuildRecord(raw, account, "INBOX")
	second := BuildRecord(raw, account, "INBOX")
	assert.NotEqual(t, first.ID, second.ID)
}
