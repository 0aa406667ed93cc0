package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"fieldsync/internal/logger"
	"fieldsync/internal/metrics"
	"fieldsync/internal/protocol"
	"fieldsync/internal/room"
	"fieldsync/internal/validate"
)

const incomingSendTimeout = 10 * time.Second

// Hub owns the relay's connections and routes their messages to rooms. All
// connection bookkeeping happens on the Run goroutine.
type Hub struct {
	connIDGen  atomic.Uint64
	conns      map[uint64]*Connection
	register   chan *Connection
	unregister chan *Connection
	incoming   chan incomingMsg
	drops      chan uint64
	rooms      *room.Manager
	done       chan struct{}
}

type incomingMsg struct {
	connID uint64
	raw    []byte
}

const incomingBufferSize = 8192

func NewHub(roomManager *room.Manager) *Hub {
	return &Hub{
		conns:      make(map[uint64]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection, 64),
		incoming:   make(chan incomingMsg, incomingBufferSize),
		drops:      make(chan uint64, 64),
		rooms:      roomManager,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				c.Close()
			}
			return
		case c := <-h.register:
			h.conns[c.ID] = c
			metrics.IncConnections()
			metrics.SetActiveConns(uint64(len(h.conns)))
			logger.Log.Info("client_connected", "conn_id", c.ID, "total", len(h.conns))
		case c := <-h.unregister:
			if _, ok := h.conns[c.ID]; !ok {
				continue
			}
			delete(h.conns, c.ID)
			metrics.SetActiveConns(uint64(len(h.conns)))
			h.rooms.LeaveAll(c.ID)
			c.Close()
			logger.Log.Info("client_disconnected", "conn_id", c.ID, "total", len(h.conns))
		case m := <-h.incoming:
			h.handleMessage(m.connID, m.raw)
		case id := <-h.drops:
			h.drop(id)
		}
	}
}

func (h *Hub) handleMessage(connID uint64, raw []byte) {
	log := logger.WithConn(connID)
	msgType, err := protocol.ParseMessageType(raw)
	if err != nil {
		log.Warn("invalid_message_type", "error", err)
		return
	}
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	switch msgType {
	case protocol.TypeJoin:
		j, err := protocol.ValidateJoin(raw)
		if err != nil {
			log.Warn("invalid_join", "error", err)
			return
		}
		if err := validate.DocID(j.DocId); err != nil {
			log.Warn("invalid_join", "error", err)
			return
		}
		if c.DocId != "" && c.DocId != j.DocId {
			log.Warn("rejoin_other_doc", "doc", j.DocId, "joined", c.DocId)
			return
		}
		c.DocId, c.SiteId = j.DocId, j.SiteId
		if !h.rooms.Join(j.DocId, connID, j.SiteId, c.Send) {
			log.Warn("overload_drop_conn", "doc", j.DocId)
			h.drop(connID)
		}
	case protocol.TypeInsert, protocol.TypeRemove:
		op, err := protocol.ValidateOperation(raw)
		if err != nil {
			log.Warn("invalid_message", "error", err)
			return
		}
		if op.DocId != c.DocId || op.SiteId != c.SiteId {
			log.Warn("op_for_unjoined_doc", "doc", op.DocId)
			return
		}
		if !h.rooms.Submit(connID, *op) {
			log.Warn("overload_drop_conn", "doc", op.DocId)
			h.drop(connID)
		}
	default:
		log.Warn("invalid_message", "error", protocol.ErrInvalidType, "type", msgType)
	}
}

func (h *Hub) Register(conn *websocket.Conn) *Connection {
	id := h.connIDGen.Add(1)
	c := NewConnection(conn, id, logger.WithConn(id))
	h.register <- c
	return c
}

func (h *Hub) Unregister(c *Connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Incoming(connID uint64, raw []byte) {
	select {
	case h.incoming <- incomingMsg{connID: connID, raw: raw}:
	case <-time.After(incomingSendTimeout):
		metrics.IncBackpressure()
		logger.WithConn(connID).Warn("router_backpressure_drop", "action", "overload_drop_conn")
	}
}

func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// DropClient asks Run to close a connection; its read pump then
// unregisters it. Safe from any goroutine.
func (h *Hub) DropClient(connID uint64) {
	select {
	case h.drops <- connID:
	default:
		logger.WithConn(connID).Warn("drop_queue_full")
	}
}

func (h *Hub) drop(connID uint64) {
	if c, ok := h.conns[connID]; ok {
		c.Close()
	}
}
