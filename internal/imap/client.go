// Package imap wraps go-imap v2 with the long-lived mailbox session used by
// the sync workers: folder discovery, windowed backfill, IDLE subscription,
// and keepalive probes.
package imap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/model"
)

// syncFolderNames are the case-insensitive substrings selecting which
// folders participate in backfill.
var syncFolderNames = []string{"inbox", "sent", "drafts"}

// Client owns one authenticated IMAP connection for a single account.
// It is not safe for concurrent use; each sync worker drives its own client
// sequentially.
type Client struct {
	account model.AccountConfig
	logger  *zap.Logger

	conn    *imapclient.Client
	updates chan struct{}
}

// NewClient creates an unconnected client for the given account.
func NewClient(account model.AccountConfig, logger *zap.Logger) *Client {
	return &Client{
		account: account,
		logger:  logger,
		updates: make(chan struct{}, 1),
	}
}

// Connect dials the IMAP server, authenticates, and installs the unilateral
// update handler that feeds IdleWait. The caller is responsible for calling
// Close on the returned client.
func (c *Client) Connect(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.account.Host, c.account.Port)

	opts := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(_ *imapclient.UnilateralDataMailbox) {
				select {
				case c.updates <- struct{}{}:
				default:
				}
			},
		},
	}

	var conn *imapclient.Client
	var err error

	if c.account.TLS {
		conn, err = imapclient.DialTLS(addr, opts)
	} else {
		conn, err = imapclient.DialStartTLS(addr, opts)
	}
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := conn.Login(c.account.Username, c.account.Password).Wait(); err != nil {
		_ = conn.Logout().Wait()
		return fmt.Errorf(
			"authentication failed for %s on %s: %w",
			c.account.Username, addr, err,
		)
	}

	c.conn = conn
	return nil
}

// SyncFolders lists all folders and returns the ones whose names contain
// "inbox", "sent", or "drafts" (case-insensitive). The filter is fixed.
func (c *Client) SyncFolders(_ context.Context) ([]string, error) {
	listCmd := c.conn.List("", "*", nil)

	folders, err := listCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	var matched []string
	for _, f := range folders {
		lower := strings.ToLower(f.Mailbox)
		for _, want := range syncFolderNames {
			if strings.Contains(lower, want) {
				matched = append(matched, f.Mailbox)
				break
			}
		}
	}

	return matched, nil
}

// FetchSince selects the folder, searches for messages received on or after
// since, and streams each message with UID greater than afterUID to fn in
// UID (fetch) order. Messages are downloaded one at a time so the sequence
// stays lazy. A callback error stops the stream and is returned.
func (c *Client) FetchSince(
	ctx context.Context,
	folder string,
	since time.Time,
	afterUID uint32,
	fn func(*RawMessage) error,
) (FolderStats, error) {
	stats := FolderStats{LastUID: afterUID}

	selData, err := c.conn.Select(folder, nil).Wait()
	if err != nil {
		return stats, fmt.Errorf("selecting %s: %w", folder, err)
	}
	stats.UIDValidity = selData.UIDValidity

	criteria := &imap.SearchCriteria{
		Since: since,
	}

	searchData, err := c.conn.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return stats, fmt.Errorf("searching %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	for _, uid := range uids {
		if uint32(uid) <= afterUID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw, err := c.fetchMessage(uid)
		if err != nil {
			c.logger.Warn("fetching message failed",
				zap.String("folder", folder),
				zap.Uint32("uid", uint32(uid)),
				zap.Error(err),
			)
			continue
		}

		if err := fn(raw); err != nil {
			return stats, err
		}

		stats.Fetched++
		if uint32(uid) > stats.LastUID {
			stats.LastUID = uint32(uid)
		}
	}

	return stats, nil
}

// fetchMessage downloads the envelope and full body for a single UID and
// parses it into a RawMessage.
func (c *Client) fetchMessage(uid imap.UID) (*RawMessage, error) {
	uidSet := imap.UIDSetNum(uid)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := c.conn.Fetch(uidSet, fetchOpts)

	msg := fetchCmd.Next()
	if msg == nil {
		fetchCmd.Close()
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		fetchCmd.Close()
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	raw := rawFromBuffer(buf)

	if body := buf.FindBodySection(bodySection); body != nil {
		textBody, htmlBody, attachments := parseMIMEBody(body)
		raw.TextBody = textBody
		raw.HTMLBody = htmlBody
		raw.Attachments = attachments
	}

	if err := fetchCmd.Close(); err != nil {
		return raw, fmt.Errorf("closing fetch: %w", err)
	}

	return raw, nil
}

// IdleWait enters IMAP IDLE on the currently selected folder and blocks
// until the server reports a mailbox change, the timeout elapses, or the
// context is canceled. It returns true when a change was observed.
func (c *Client) IdleWait(ctx context.Context, timeout time.Duration) (bool, error) {
	// Drain a stale signal so we only report changes seen while idling.
	select {
	case <-c.updates:
	default:
	}

	idleCmd, err := c.conn.Idle()
	if err != nil {
		return false, fmt.Errorf("starting IDLE: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	updated := false
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-c.updates:
		updated = true
	}

	if err := idleCmd.Close(); err != nil {
		return updated, fmt.Errorf("stopping IDLE: %w", err)
	}
	if err := idleCmd.Wait(); err != nil {
		return updated, fmt.Errorf("waiting for IDLE completion: %w", err)
	}

	return updated, ctx.Err()
}

// Noop sends a NOOP keepalive probe.
func (c *Client) Noop(_ context.Context) error {
	return c.conn.Noop().Wait()
}

// Close logs out and tears down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Logout().Wait()
	c.conn = nil
	return err
}

// rawFromBuffer extracts envelope fields from a FetchMessageBuffer.
func rawFromBuffer(buf *imapclient.FetchMessageBuffer) *RawMessage {
	raw := &RawMessage{
		UID: uint32(buf.UID),
	}

	if buf.Envelope == nil {
		return raw
	}

	raw.MessageID = buf.Envelope.MessageID
	raw.Subject = buf.Envelope.Subject
	raw.Date = buf.Envelope.Date
	raw.From = formatAddresses(buf.Envelope.From)
	raw.To = formatAddresses(buf.Envelope.To)

	return raw
}

// formatAddresses renders an address list the way mail clients display it:
// "Name <addr>" entries joined by commas.
func formatAddresses(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Addr()))
		} else {
			parts = append(parts, a.Addr())
		}
	}
	return strings.Join(parts, ", ")
}
