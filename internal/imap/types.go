package imap

import "time"

// RawMessage holds the parsed envelope and content of one fetched message,
// before normalization into a canonical record.
type RawMessage struct {
	UID         uint32
	MessageID   string
	Subject     string
	From        string
	To          string
	Date        time.Time
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// FolderStats describes the state of a mailbox after a fetch pass.
type FolderStats struct {
	// UIDValidity is the server-assigned validity token for the folder.
	// A change invalidates any persisted UID mark.
	UIDValidity uint32

	// LastUID is the highest UID processed during the pass, or the
	// incoming mark when nothing new was fetched.
	LastUID uint32

	// Fetched is the number of messages handed to the callback.
	Fetched int
}
