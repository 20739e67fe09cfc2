package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world"
	"washcycle.game/internal/sim/world/logic/ids"
)

const queryTimeout = 2 * time.Second

type Server struct {
	world   *world.World
	schemas *protocol.Schemas
	log     *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[string]chan []byte
	dropped  atomic.Uint64
}

func NewServer(w *world.World, schemas *protocol.Schemas, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		world:   w,
		schemas: schemas,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]chan []byte{},
	}
}

// Broadcast queues one EVENTS batch on every connected session. Sessions whose
// queue is full miss the batch; the world never waits on a slow client.
func (s *Server) Broadcast(_ context.Context, msg protocol.EventsMsg) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, out := range s.sessions {
		select {
		case out <- b:
		default:
			if s.dropped.Add(1)%100 == 1 {
				s.log.Printf("ws: session %s queue full, dropping events tick=%d", id, msg.Tick)
			}
		}
	}
	return nil
}

// Dropped counts EVENTS batches that were not delivered to a full session.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// BootstrapHandler serves the world parameters as plain JSON for clients that
// want them before opening a socket.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := struct {
			ProtocolVersion string               `json:"protocol_version"`
			WorldID         string               `json:"world_id"`
			Tick            uint64               `json:"tick"`
			WorldParams     protocol.WorldParams `json:"world_params"`
		}{
			ProtocolVersion: protocol.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			WorldParams:     s.worldParams(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}
		defer s.unregister(sessionID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.dispatch(ctx, sessionID, msg, out)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sessionID string, msg []byte, out chan []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reply(out, errorMsg(protocol.ErrProtoBadRequest, "malformed json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.reply(out, errorMsg(protocol.ErrProtoVersion, "expected protocol_version "+protocol.Version))
		return
	}
	switch base.Type {
	case protocol.TypeInput:
		if err := s.schemas.Validate(protocol.TypeInput, msg); err != nil {
			s.reply(out, errorMsg(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		var in protocol.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			s.reply(out, errorMsg(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		s.enqueue(sessionID, in.Inputs, out)
	case protocol.TypeInventoryReq:
		if err := s.schemas.Validate(protocol.TypeInventoryReq, msg); err != nil {
			s.reply(out, errorMsg(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		var req protocol.InventoryReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			s.reply(out, errorMsg(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		s.reply(out, s.inventory(ctx, req))
	default:
		s.reply(out, errorMsg(protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type)))
	}
}

// enqueue hands a batch to the world inbox. A batch that does not fit is
// refused whole; if another session fills the inbox mid-batch, the inputs that
// did not make it are listed in the ERROR reply.
func (s *Server) enqueue(sessionID string, inputs []protocol.InputReq, out chan []byte) {
	inbox := s.world.Inbox()
	if cap(inbox)-len(inbox) < len(inputs) {
		s.reply(out, rejected(inputs, "input queue full"))
		return
	}
	for i, req := range inputs {
		select {
		case inbox <- world.InputEnvelope{SessionID: sessionID, Input: req}:
		default:
			s.reply(out, rejected(inputs[i:], "input queue full"))
			return
		}
	}
}

func rejected(inputs []protocol.InputReq, message string) protocol.ErrorMsg {
	msg := errorMsg(protocol.ErrWorldBusy, message)
	for _, in := range inputs {
		msg.Rejected = append(msg.Rejected, in.ID)
	}
	return msg
}

func (s *Server) inventory(ctx context.Context, req protocol.InventoryReqMsg) protocol.InventoryMsg {
	resp := protocol.InventoryMsg{
		Type:            protocol.TypeInventory,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
	}
	qr, err := s.query(ctx, req.Holder)
	if err != nil {
		resp.Tick = s.world.CurrentTick()
		resp.Code = protocol.ErrWorldBusy
		return resp
	}
	resp.Tick = qr.Tick
	if !qr.OK {
		resp.Code = protocol.ErrInvalidTarget
		return resp
	}
	obs := qr.View.Obs()
	resp.Inventory = &obs
	return resp
}

func (s *Server) query(ctx context.Context, holder string) (world.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	respCh := make(chan world.QueryResponse, 1)
	select {
	case s.world.Queries() <- world.QueryRequest{Holder: holder, Resp: respCh}:
	case <-ctx.Done():
		return world.QueryResponse{}, ctx.Err()
	}
	select {
	case qr := <-respCh:
		return qr, nil
	case <-ctx.Done():
		return world.QueryResponse{}, ctx.Err()
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.refuse(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", nil
	}
	if base.ProtocolVersion != protocol.Version {
		s.refuse(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return "", nil
	}
	if err := s.schemas.Validate(protocol.TypeHello, msg); err != nil {
		s.refuse(conn, protocol.ErrProtoBadRequest, err.Error())
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.refuse(conn, protocol.ErrProtoBadRequest, err.Error())
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	if maxQ > 256 {
		maxQ = 256
	}

	qr, err := s.query(context.Background(), ids.PlayerID)
	if err != nil {
		s.refuse(conn, protocol.ErrWorldBusy, "world not responding")
		return "", nil
	}

	sessionID = fmt.Sprintf("S%06d", s.nextID.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         s.world.ID(),
		Tick:            qr.Tick,
		WorldParams:     s.worldParams(),
		Player:          qr.View.Obs(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}

	out = make(chan []byte, maxQ)
	s.mu.Lock()
	s.sessions[sessionID] = out
	s.mu.Unlock()
	s.log.Printf("ws: session %s connected client=%q", sessionID, hello.ClientName)
	return sessionID, out
}

func (s *Server) unregister(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	s.log.Printf("ws: session %s closed", sessionID)
}

func (s *Server) worldParams() protocol.WorldParams {
	cfg := s.world.Config()
	return protocol.WorldParams{
		TickRateHz:        cfg.TickRateHz,
		PlayerMaxItems:    cfg.PlayerMaxItems,
		CustomerMaxItems:  cfg.CustomerMaxItems,
		MachineMaxItems:   cfg.MachineMaxItems,
		MachineWorkMillis: cfg.MachineWork.Milliseconds(),
		Seed:              cfg.Seed,
		TuningDigest:      cfg.TuningDigest,
	}
}

func (s *Server) reply(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ws: marshal reply: %v", err)
		return
	}
	select {
	case out <- b:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) refuse(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, errorMsg(code, message))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
