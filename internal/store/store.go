// Package store persists per-folder synchronization marks so restarts
// resume incremental fetching instead of rescanning the backfill window.
package store

import "context"

// SyncMark records how far a folder has been synchronized. UIDValidity
// pins the mark to a mailbox generation: when the server reports a new
// UIDVALIDITY the stored LastUID no longer means anything.
type SyncMark struct {
	Account     string `db:"account"`
	Folder      string `db:"folder"`
	UIDValidity uint32 `db:"uid_validity"`
	LastUID     uint32 `db:"last_uid"`
}

// Store is the persistence interface consumed by the sync workers.
type Store interface {
	// GetMark returns the stored mark for an account/folder pair, or
	// (nil, nil) when no mark has been recorded yet.
	GetMark(ctx context.Context, account, folder string) (*SyncMark, error)

	// SetMark inserts or replaces the mark for its account/folder pair.
	SetMark(ctx context.Context, mark SyncMark) error

	Close() error
}
