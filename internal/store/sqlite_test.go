package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMarkMissing(t *testing.T) {
	s := testStore(t)

	mark, err := s.GetMark(context.Background(), "Work", "INBOX")
	require.NoError(t, err)
	assert.Nil(t, mark)
}

func TestSetAndGetMark(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := SyncMark{Account: "Work", Folder: "INBOX", UIDValidity: 7, LastUID: 321}
	require.NoError(t, s.SetMark(ctx, in))

	got, err := s.GetMark(ctx, "Work", "INBOX")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)
}

func TestSetMarkReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetMark(ctx, SyncMark{
		Account: "Work", Folder: "INBOX", UIDValidity: 7, LastUID: 100,
	}))
	require.NoError(t, s.SetMark(ctx, SyncMark{
		Account: "Work", Folder: "INBOX", UIDValidity: 8, LastUID: 5,
	}))

	got, err := s.GetMark(ctx, "Work", "INBOX")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(8), got.UIDValidity)
	assert.Equal(t, uint32(5), got.LastUID)
}

func TestMarksAreScopedPerAccountAndFolder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetMark(ctx, SyncMark{
		Account: "Work", Folder: "INBOX", UIDValidity: 1, LastUID: 10,
	}))
	require.NoError(t, s.SetMark(ctx, SyncMark{
		Account: "Work", Folder: "Sent", UIDValidity: 2, LastUID: 20,
	}))
	require.NoError(t, s.SetMark(ctx, SyncMark{
		Account: "Personal", Folder: "INBOX", UIDValidity: 3, LastUID: 30,
	}))

	inbox, err := s.GetMark(ctx, "Work", "INBOX")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), inbox.LastUID)

	sent, err := s.GetMark(ctx, "Work", "Sent")
	require.NoError(t, err)
	assert.Equal(t, uint32(20), sent.LastUID)

	personal, err := s.GetMark(ctx, "Personal", "INBOX")
	require.NoError(t, err)
	assert.Equal(t, uint32(30), personal.LastUID)
}
