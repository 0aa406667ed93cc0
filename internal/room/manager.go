package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fieldsync/internal/document"
	"fieldsync/internal/logger"
	"fieldsync/internal/metrics"
	"fieldsync/internal/protocol"
	"fieldsync/internal/utf16text"
)

const (
	managerCommandTimeout = 5 * time.Second
	managerCommandBuffer  = 2048
	roomCommandBuffer     = 1024
)

// Manager owns one room per document. Each room holds the authoritative
// text and applies edits strictly in arrival order: an edit whose base
// version is not the room's current version is rejected and its sender is
// sent a snapshot instead.
type Manager struct {
	onDrop   func(connID uint64)
	rooms    map[string]*room
	commands chan managerCmd
	mu       sync.Mutex
	done     chan struct{}
}

type managerCmd struct {
	join *struct {
		docId  string
		connID uint64
		siteId string
		sendCh chan []byte
	}
	leaveAll *uint64
	submit   *struct {
		docId  string
		connID uint64
		op     protocol.Operation
	}
}

const dropAfterFailures = 5

type peer struct {
	connID       uint64
	siteId       string
	ch           chan []byte
	sendFailures int
}

type room struct {
	docId       string
	text        *document.Text
	peersByConn map[uint64]*peer
	npeers      atomic.Uint64
	commands    chan roomCmd
	manager     *Manager
}

type roomCmd struct {
	join *struct {
		connID uint64
		siteId string
		ch     chan []byte
	}
	leave  *uint64
	submit *struct {
		connID uint64
		op     protocol.Operation
	}
}

func NewManager(onDrop func(connID uint64)) *Manager {
	m := &Manager{
		onDrop:   onDrop,
		rooms:    make(map[string]*room),
		commands: make(chan managerCmd, managerCommandBuffer),
		done:     make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Manager) SetDropCallback(fn func(connID uint64)) {
	m.mu.Lock()
	m.onDrop = fn
	m.mu.Unlock()
}

func (m *Manager) Drop(connID uint64) {
	m.mu.Lock()
	fn := m.onDrop
	m.mu.Unlock()
	if fn != nil {
		fn(connID)
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for cmd := range m.commands {
		if cmd.join != nil {
			j := cmd.join
			m.mu.Lock()
			r, ok := m.rooms[j.docId]
			if !ok {
				r = newRoom(j.docId, m)
				m.rooms[j.docId] = r
				go r.run()
			}
			m.mu.Unlock()
			r.commands <- roomCmd{
				join: &struct {
					connID uint64
					siteId string
					ch     chan []byte
				}{j.connID, j.siteId, j.sendCh},
			}
		}
		if cmd.leaveAll != nil {
			connID := *cmd.leaveAll
			m.mu.Lock()
			rooms := make([]*room, 0, len(m.rooms))
			for _, r := range m.rooms {
				rooms = append(rooms, r)
			}
			m.mu.Unlock()
			for _, r := range rooms {
				r.commands <- roomCmd{leave: &connID}
			}
		}
		if cmd.submit != nil {
			s := cmd.submit
			m.mu.Lock()
			r, ok := m.rooms[s.docId]
			m.mu.Unlock()
			if !ok {
				logger.WithConnAndDoc(s.connID, s.docId).Warn("room_submit_unknown_doc")
				continue
			}
			select {
			case r.commands <- roomCmd{
				submit: &struct {
					connID uint64
					op     protocol.Operation
				}{s.connID, s.op},
			}:
			default:
				metrics.IncBackpressure()
				logger.WithDoc(s.docId).Warn("room_submit_backpressure_drop")
			}
		}
	}
	m.mu.Lock()
	for _, r := range m.rooms {
		close(r.commands)
	}
	m.mu.Unlock()
}

func newRoom(docId string, manager *Manager) *room {
	return &room{
		docId:       docId,
		text:        document.NewText(""),
		peersByConn: make(map[uint64]*peer),
		commands:    make(chan roomCmd, roomCommandBuffer),
		manager:     manager,
	}
}

func safeSend(ch chan []byte, msg []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// sendWithFailureTracking attempts to send; on failure, increments peer's sendFailures
// and returns shouldDrop if the peer has exceeded the failure threshold.
func sendWithFailureTracking(p *peer, raw []byte) (shouldDrop bool) {
	if safeSend(p.ch, raw) {
		p.sendFailures = 0
		return false
	}
	p.sendFailures++
	metrics.IncSendSkips()
	return p.sendFailures >= dropAfterFailures
}

func (r *room) send(p *peer, raw []byte) {
	if sendWithFailureTracking(p, raw) {
		delete(r.peersByConn, p.connID)
		r.npeers.Store(uint64(len(r.peersByConn)))
		r.manager.Drop(p.connID)
	}
}

func (r *room) sendSnapshot(p *peer) {
	raw, err := protocol.Encode(protocol.NewSnapshot(r.docId, r.text.Version(), r.text.String()))
	if err != nil {
		logger.WithDoc(r.docId).Error("snapshot_encode_failed", "error", err)
		return
	}
	r.send(p, raw)
}

func (r *room) apply(connID uint64, op protocol.Operation) {
	log := logger.WithConnAndDoc(connID, r.docId)
	p, joined := r.peersByConn[connID]
	if !joined {
		log.Warn("room_submit_not_joined")
		return
	}
	if op.Version != r.text.Version() {
		metrics.IncOpsRejected()
		log.Info("room_rejected_stale", "base", op.Version, "current", r.text.Version())
		r.sendSnapshot(p)
		return
	}
	switch op.Type {
	case protocol.TypeInsert:
		next := utf16text.Insert(r.text.String(), op.Pos, op.Text)
		if !protocol.SnapshotFits(r.docId, r.text.Version()+1, next) {
			metrics.IncOpsRejected()
			log.Warn("room_rejected_full", "error", protocol.ErrDocumentFull, "bytes", len(next))
			r.sendSnapshot(p)
			return
		}
		r.text.Reset(next, r.text.Version()+1)
	case protocol.TypeRemove:
		r.text.Remove(op.Pos, op.Length)
	default:
		return
	}
	metrics.IncOpsProcessed()
	op.Version = r.text.Version()
	raw, err := protocol.Encode(op)
	if err != nil {
		log.Error("op_encode_failed", "error", err)
		return
	}
	for _, q := range r.peersByConn {
		r.send(q, raw)
	}
}

func (r *room) run() {
	for cmd := range r.commands {
		if cmd.join != nil {
			j := cmd.join
			p := &peer{connID: j.connID, siteId: j.siteId, ch: j.ch}
			r.peersByConn[j.connID] = p
			r.npeers.Store(uint64(len(r.peersByConn)))
			r.sendSnapshot(p)
		}
		if cmd.leave != nil {
			delete(r.peersByConn, *cmd.leave)
			r.npeers.Store(uint64(len(r.peersByConn)))
		}
		if cmd.submit != nil {
			r.apply(cmd.submit.connID, cmd.submit.op)
		}
	}
}

func (m *Manager) Stats() (rooms uint64, peers uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		peers += r.npeers.Load()
	}
	return uint64(len(m.rooms)), peers
}

// Join adds a connection to a document's room and sends it a snapshot.
func (m *Manager) Join(docId string, connID uint64, siteId string, sendCh chan []byte) bool {
	select {
	case m.commands <- managerCmd{
		join: &struct {
			docId  string
			connID uint64
			siteId string
			sendCh chan []byte
		}{docId, connID, siteId, sendCh},
	}:
		return true
	case <-time.After(managerCommandTimeout):
		metrics.IncBackpressure()
		logger.WithConnAndDoc(connID, docId).Warn("room_manager_backpressure_drop")
		return false
	}
}

func (m *Manager) LeaveAll(connID uint64) {
	select {
	case m.commands <- managerCmd{leaveAll: &connID}:
	default:
	}
}

// Submit hands an edit to its document's room.
func (m *Manager) Submit(connID uint64, op protocol.Operation) bool {
	select {
	case m.commands <- managerCmd{
		submit: &struct {
			docId  string
			connID uint64
			op     protocol.Operation
		}{op.DocId, connID, op},
	}:
		return true
	case <-time.After(managerCommandTimeout):
		metrics.IncBackpressure()
		logger.WithDoc(op.DocId).Warn("room_submit_backpressure_drop")
		return false
	}
}

func (m *Manager) Shutdown(ctx context.Context) {
	close(m.commands)
	select {
	case <-m.done:
	case <-ctx.Done():
	}
}
