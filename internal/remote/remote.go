// Package remote implements fieldsync.Context over a websocket connection
// to the relay server.
//
// The client keeps a replica of the document. Local edits are applied to the
// replica at once and sent with the version they were made against; the
// relay either echoes them with their new version or, if another edit got
// there first, answers with a snapshot, which the client turns into a
// remove/insert pair for its listener.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fieldsync"
	"fieldsync/internal/logger"
	"fieldsync/internal/metrics"
	"fieldsync/internal/protocol"
	"fieldsync/internal/utf16text"
	"fieldsync/internal/validate"
	"fieldsync/internal/ws"
)

// ErrClosed is returned by Dial when the connection ends before the first
// snapshot arrives.
var ErrClosed = errors.New("connection closed")

// Poster queues a function on the goroutine that owns the bindings.
type Poster interface {
	Post(fn func())
}

type Options struct {
	// SiteID identifies this client; a random UUID when empty.
	SiteID string
	// OnChange, if set, runs on the loop after each remote message.
	OnChange func()
}

// Doc is a relay document replica. Except for Close and Done, its methods
// must run on the loop given to Dial.
type Doc struct {
	conn   *ws.Connection
	docID  string
	siteID string
	loop   Poster
	log    *slog.Logger

	onChange func()
	listener fieldsync.Listener

	text     string
	version  uint64
	inflight int

	ready chan *protocol.Snapshot
}

var _ fieldsync.Context = (*Doc)(nil)

// Dial connects to the relay at serverURL (ws://host:port/ws), joins docID
// and waits for its snapshot. Messages after the snapshot are handled on
// loop.
func Dial(ctx context.Context, serverURL, docID string, loop Poster, opt Options) (*Doc, error) {
	if err := validate.DocID(docID); err != nil {
		return nil, err
	}
	siteID := opt.SiteID
	if siteID == "" {
		siteID = uuid.NewString()
	}
	if err := validate.SiteID(siteID); err != nil {
		return nil, err
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("doc", docID)
	u.RawQuery = q.Encode()

	sock, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	log := logger.WithSite(docID, siteID)
	d := &Doc{
		conn:     ws.NewConnection(sock, 0, log),
		docID:    docID,
		siteID:   siteID,
		loop:     loop,
		log:      log,
		onChange: opt.OnChange,
		ready:    make(chan *protocol.Snapshot, 1),
	}

	pumpCtx := context.WithoutCancel(ctx)
	go d.conn.WritePump(pumpCtx)
	joined := false
	go d.conn.ReadPump(pumpCtx, func(raw []byte) {
		if !joined {
			s, err := protocol.ValidateSnapshot(raw)
			if err != nil {
				d.log.Warn("expected_snapshot", "error", err)
				return
			}
			joined = true
			d.text, d.version = s.Text, s.Version
			d.ready <- s
			return
		}
		d.loop.Post(func() { d.handle(raw) })
	}, d.conn.Close)

	if err := d.conn.SendMessage(protocol.NewJoin(docID, siteID)); err != nil {
		d.conn.Close()
		return nil, err
	}
	var snap *protocol.Snapshot
	select {
	case snap = <-d.ready:
	case <-d.conn.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		d.conn.Close()
		return nil, ctx.Err()
	}
	d.log.Info("joined", "version", snap.Version, "len", utf16text.Len(snap.Text))
	return d, nil
}

func (d *Doc) SiteID() string { return d.siteID }

// Version returns the relay version the replica reflects, not counting
// unacknowledged local edits.
func (d *Doc) Version() uint64 { return d.version }

func (d *Doc) Get() string { return d.text }

func (d *Doc) ProvidesText() bool { return true }

func (d *Doc) SetListener(l fieldsync.Listener) { d.listener = l }

func (d *Doc) Insert(pos int, text string) {
	d.text = utf16text.Insert(d.text, pos, text)
	d.submit(protocol.NewInsert(d.docID, d.siteID, d.version+uint64(d.inflight), pos, text))
}

func (d *Doc) Remove(pos, length int) {
	d.text = utf16text.Remove(d.text, pos, length)
	d.submit(protocol.NewRemove(d.docID, d.siteID, d.version+uint64(d.inflight), pos, length))
}

func (d *Doc) submit(op protocol.Operation) {
	if err := d.conn.SendMessage(op); err != nil {
		d.log.Warn("send_failed", "error", err, "type", op.Type)
	}
	d.inflight++
}

// Close leaves the document.
func (d *Doc) Close() {
	d.conn.Close()
}

// Done is closed once the connection has ended.
func (d *Doc) Done() <-chan struct{} {
	return d.conn.Done()
}

func (d *Doc) handle(raw []byte) {
	typ, err := protocol.ParseMessageType(raw)
	if err != nil {
		d.log.Warn("invalid_message_type", "error", err)
		return
	}
	switch typ {
	case protocol.TypeSnapshot:
		s, err := protocol.ValidateSnapshot(raw)
		if err != nil {
			d.log.Warn("invalid_snapshot", "error", err)
			return
		}
		d.resync(s)
	case protocol.TypeInsert, protocol.TypeRemove:
		op, err := protocol.ValidateOperation(raw)
		if err != nil {
			d.log.Warn("invalid_message", "error", err)
			return
		}
		d.apply(op)
	default:
		d.log.Warn("invalid_message", "error", protocol.ErrInvalidType, "type", typ)
		return
	}
	if d.onChange != nil {
		d.onChange()
	}
}

func (d *Doc) apply(op *protocol.Operation) {
	if d.inflight > 0 {
		if op.SiteId == d.siteID {
			d.inflight--
			d.version = op.Version
			return
		}
		// Another site's edit won the race; ours will be rejected and a
		// snapshot follows.
		d.log.Debug("skip_concurrent_op", "from", op.SiteId, "version", op.Version)
		return
	}
	d.version = op.Version
	switch op.Type {
	case protocol.TypeInsert:
		d.text = utf16text.Insert(d.text, op.Pos, op.Text)
		if d.listener != nil {
			d.listener.OnInsert(op.Pos, op.Text)
		}
	case protocol.TypeRemove:
		d.text = utf16text.Remove(d.text, op.Pos, op.Length)
		if d.listener != nil {
			d.listener.OnRemove(op.Pos, op.Length)
		}
	}
}

func (d *Doc) resync(s *protocol.Snapshot) {
	metrics.IncResyncs()
	d.log.Info("resync", "version", s.Version, "dropped_edits", d.inflight)
	old := d.text
	d.text, d.version, d.inflight = s.Text, s.Version, 0
	diff := fieldsync.ComputeDiff(old, s.Text)
	if d.listener == nil {
		return
	}
	if diff.Remove != nil {
		d.listener.OnRemove(diff.Remove.Pos, diff.Remove.Length)
	}
	if diff.Insert != nil {
		d.listener.OnInsert(diff.Insert.Pos, diff.Insert.Text)
	}
}
