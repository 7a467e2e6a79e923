package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/imap"
	"github.com/nhle/inbox-aggregator/internal/ingest"
	"github.com/nhle/inbox-aggregator/internal/metrics"
	"github.com/nhle/inbox-aggregator/internal/model"
	"github.com/nhle/inbox-aggregator/internal/store"
)

// Mailbox is the IMAP surface the worker drives. *imap.Client implements
// it; tests substitute a scripted fake.
type Mailbox interface {
	Connect(ctx context.Context) error
	SyncFolders(ctx context.Context) ([]string, error)
	FetchSince(
		ctx context.Context,
		folder string,
		since time.Time,
		afterUID uint32,
		fn func(*imap.RawMessage) error,
	) (imap.FolderStats, error)
	IdleWait(ctx context.Context, timeout time.Duration) (bool, error)
	Noop(ctx context.Context) error
	Close() error
}

// Worker owns the sync loop for a single account: an initial backfill of
// every matched folder, then an IDLE loop on the inbox with periodic
// keepalive probes.
type Worker struct {
	account   model.AccountConfig
	mailbox   Mailbox
	processor *Processor
	marks     store.Store // nil disables resume marks
	backfill  int         // days
	keepAlive time.Duration
	logger    *zap.Logger

	// lastUIDs tracks the highest UID fetched per folder within this
	// session so IDLE-triggered rescans only pick up new messages.
	lastUIDs map[string]uint32
}

// NewWorker creates a worker for one account. marks may be nil, in which
// case every start rescans the full backfill window.
func NewWorker(
	account model.AccountConfig,
	mailbox Mailbox,
	processor *Processor,
	marks store.Store,
	backfillDays int,
	keepAlive time.Duration,
	logger *zap.Logger,
) *Worker {
	if backfillDays <= 0 {
		backfillDays = 30
	}
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &Worker{
		account:   account,
		mailbox:   mailbox,
		processor: processor,
		marks:     marks,
		backfill:  backfillDays,
		keepAlive: keepAlive,
		logger:    logger.With(zap.String("account", account.Name)),
	}
}

// Run connects, backfills, and then watches the inbox until ctx is
// canceled. A nil return means a clean shutdown.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.mailbox.Connect(ctx); err != nil {
		return fmt.Errorf("account %s: %w", w.account.Name, err)
	}
	defer w.mailbox.Close()

	folders, err := w.mailbox.SyncFolders(ctx)
	if err != nil {
		return fmt.Errorf("account %s: %w", w.account.Name, err)
	}
	if len(folders) == 0 {
		w.logger.Warn("no folders matched for synchronization")
	}

	since := time.Now().AddDate(0, 0, -w.backfill)
	w.lastUIDs = make(map[string]uint32, len(folders))

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.syncFolder(ctx, folder, since); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("folder sync failed",
				zap.String("folder", folder), zap.Error(err))
		}
	}

	inbox := findInbox(folders)
	if inbox == "" {
		w.logger.Warn("no inbox folder found, skipping live updates")
		<-ctx.Done()
		return nil
	}

	return w.watchInbox(ctx, inbox, since)
}

// watchInbox alternates IDLE windows with NOOP keepalive probes. When a
// window ends with a mailbox update the inbox is rescanned for messages
// newer than the last seen UID.
func (w *Worker) watchInbox(ctx context.Context, inbox string, since time.Time) error {
	w.logger.Info("watching inbox for updates", zap.String("folder", inbox))

	for {
		updated, err := w.mailbox.IdleWait(ctx, w.keepAlive)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("account %s: idle: %w", w.account.Name, err)
		}

		if updated {
			metrics.IdleCycles.WithLabelValues(w.account.Name, "update").Inc()
			if err := w.syncFolder(ctx, inbox, since); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("inbox rescan failed", zap.Error(err))
			}
			continue
		}

		metrics.IdleCycles.WithLabelValues(w.account.Name, "timeout").Inc()
		if err := w.mailbox.Noop(ctx); err != nil {
			w.logger.Warn("keepalive probe failed", zap.Error(err))
		}
	}
}

// syncFolder fetches messages newer than the folder's resume mark and
// runs each through the processor. A UIDVALIDITY change invalidates the
// stored mark and triggers a full rescan of the backfill window.
func (w *Worker) syncFolder(ctx context.Context, folder string, since time.Time) error {
	afterUID, markValidity := w.resumePoint(ctx, folder)

	stats, err := w.fetchInto(ctx, folder, since, afterUID)
	if err != nil {
		return err
	}

	if markValidity != 0 && stats.UIDValidity != markValidity {
		w.logger.Warn("mailbox UIDVALIDITY changed, rescanning",
			zap.String("folder", folder),
			zap.Uint32("old", markValidity),
			zap.Uint32("new", stats.UIDValidity),
		)
		stats, err = w.fetchInto(ctx, folder, since, 0)
		if err != nil {
			return err
		}
	}

	w.lastUIDs[folder] = stats.LastUID

	if w.marks != nil {
		mark := store.SyncMark{
			Account:     w.account.Name,
			Folder:      folder,
			UIDValidity: stats.UIDValidity,
			LastUID:     stats.LastUID,
		}
		if err := w.marks.SetMark(ctx, mark); err != nil {
			w.logger.Warn("persisting sync mark failed",
				zap.String("folder", folder), zap.Error(err))
		}
	}

	if stats.Fetched > 0 {
		w.logger.Info("folder synchronized",
			zap.String("folder", folder),
			zap.Int("fetched", stats.Fetched),
			zap.Uint32("lastUID", stats.LastUID),
		)
	}

	return nil
}

// fetchInto streams a folder's new messages through the processor.
func (w *Worker) fetchInto(
	ctx context.Context,
	folder string,
	since time.Time,
	afterUID uint32,
) (imap.FolderStats, error) {
	return w.mailbox.FetchSince(ctx, folder, since, afterUID,
		func(raw *imap.RawMessage) error {
			rec := ingest.BuildRecord(raw, w.account, folder)
			w.processor.Process(ctx, rec)
			return nil
		},
	)
}

// resumePoint returns the UID high-water mark for a folder and the
// UIDVALIDITY it was recorded under. Session-local state wins over the
// persisted mark; both may be absent.
func (w *Worker) resumePoint(ctx context.Context, folder string) (uint32, uint32) {
	if uid, ok := w.lastUIDs[folder]; ok {
		return uid, 0
	}

	if w.marks == nil {
		return 0, 0
	}

	mark, err := w.marks.GetMark(ctx, w.account.Name, folder)
	if err != nil {
		w.logger.Warn("reading sync mark failed",
			zap.String("folder", folder), zap.Error(err))
		return 0, 0
	}
	if mark == nil {
		return 0, 0
	}

	return mark.LastUID, mark.UIDValidity
}

// findInbox picks the folder used for live updates.
func findInbox(folders []string) string {
	for _, f := range folders {
		if strings.Contains(strings.ToLower(f), "inbox") {
			return f
		}
	}
	return ""
}
