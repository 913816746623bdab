package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/kruivka/broadcast"
	"github.com/wfunc/kruivka/config"
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/monitor"
	"github.com/wfunc/kruivka/network"
	"github.com/wfunc/kruivka/persistence"
	"github.com/wfunc/kruivka/room"
	kruivka_rpc "github.com/wfunc/kruivka/rpc"
	"github.com/wfunc/kruivka/services"
	"github.com/wfunc/kruivka/session"
)

const (
	heartbeatInterval = 30 * time.Second
	requestTimeout    = 5 * time.Second
)

var (
	ErrNotLoggedIn  = errors.New("login first")
	ErrInRoom       = errors.New("already in a room")
	ErrNotInRoom    = errors.New("not in a room")
	ErrReservedName = errors.New("user id is reserved")
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	playerService  *services.PlayerService
	broadcaster    broadcast.Broadcaster
	rpcServer      *kruivka_rpc.Server
	monitor        *monitor.Monitor
	defaultMode    game.Mode
	httpServer     *http.Server
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(cfg config.Config, db persistence.Database, opts room.Options, mon *monitor.Monitor) (*GameServer, error) {
	opts.Metrics = mon
	s := &GameServer{
		addr: cfg.Server.HTTPAddress,
		roomManager: room.NewRoomManager(db, opts, room.BrainOptions{
			Seed:           cfg.Bot.Seed,
			NominateChance: cfg.Bot.NominateChance,
		}),
		sessionManager: session.NewManager(),
		playerService:  services.NewPlayerService(db),
		monitor:        mon,
		defaultMode:    game.Mode(cfg.Game.DefaultMode),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	b := broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.roomManager.SetBroadcaster(b)
	s.broadcaster = b

	// 初始化RPC服务器
	rpcServer, err := kruivka_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		return nil, fmt.Errorf("create rpc server: %w", err)
	}
	// 注册RPC服务
	if err := rpcServer.Register(kruivka_rpc.NewGameService(s.playerService)); err != nil {
		rpcServer.Stop()
		return nil, err
	}
	s.rpcServer = rpcServer

	return s, nil
}

// Router 所有 HTTP 路由
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.monitor.Handler())
	r.Get("/rooms/{id}", s.handleGetRoom)
	r.Get("/players/{id}/stats", s.handlePlayerStats)
	return r
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	s.mutex.Lock()
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Router()}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
	})
	data, _ := json.Marshal(network.ErrorMessage{Error: "server shutting down"})
	s.broadcaster.BroadcastToAll(network.MsgTypeError, data)

	s.rpcServer.Stop()
	s.roomManager.Close()

	s.mutex.Lock()
	srv := s.httpServer
	s.mutex.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *GameServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.roomManager.Count(),
		"online": s.sessionManager.Count(),
	})
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.playerService.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, persistence.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (s *GameServer) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.playerService.GetPlayerWithStats(r.Context(), chi.URLParam(r, "id"), 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		// 断线不让出座位，重连后凭 userId 回到房间
		s.roomManager.Disconnect(sess)
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		err = sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeLogin:
		err = s.handleLogin(sess, packet)
	case network.MsgTypeCreateRoom:
		err = s.handleCreateRoom(ctx, sess, packet)
	case network.MsgTypeJoinRoom:
		err = s.handleJoinRoom(ctx, sess, packet)
	case network.MsgTypeLeaveRoom:
		err = s.handleLeaveRoom(ctx, sess)
	case network.MsgTypePlayerAction:
		s.handleGameAction(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
	if err != nil {
		s.sendError(sess, packet.MsgID, err)
	}
}

func (s *GameServer) sendError(sess *session.Session, request uint16, err error) {
	logger.Log.Debugf("session %s request %d: %v", sess.GetID(), request, err)
	data, _ := json.Marshal(network.ErrorMessage{Request: request, Error: err.Error()})
	sess.Send(network.MsgTypeError, data)
}

func reply(sess *session.Session, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sess.Send(msgID, data)
}

func (s *GameServer) handleLogin(sess *session.Session, packet *network.Packet) error {
	var req network.LoginRequest
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return err
		}
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}
	if game.IsBot(req.UserID) {
		return ErrReservedName
	}
	if req.Name == "" {
		req.Name = "Player-" + uuid.NewString()[:4]
	}
	sess.Identify(req.UserID, req.Name)
	logger.Log.Infof("Session %s is %s (%s)", sess.GetID(), req.UserID, req.Name)
	return reply(sess, network.MsgTypeLogin, network.LoginResponse{UserID: req.UserID, Name: req.Name})
}

func (s *GameServer) handleCreateRoom(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	userID, name := sess.Identity()
	if userID == "" {
		return ErrNotLoggedIn
	}
	if sess.Room() != "" {
		return ErrInRoom
	}
	var req network.CreateRoomRequest
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return err
		}
	}
	if req.Mode == "" {
		req.Mode = string(s.defaultMode)
	}

	rm, err := s.roomManager.CreateRoom(ctx, game.Player{UserID: userID, Name: name}, game.Mode(req.Mode))
	if err != nil {
		return err
	}
	if _, err := s.roomManager.Join(ctx, rm.ID, sess); err != nil {
		return err
	}
	logger.Log.Infof("Session %s created room %s", sess.GetID(), rm.ID)
	return reply(sess, network.MsgTypeCreateRoom, network.RoomResponse{RoomID: rm.ID})
}

func (s *GameServer) handleJoinRoom(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	if userID, _ := sess.Identity(); userID == "" {
		return ErrNotLoggedIn
	}
	var req network.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return err
	}
	if current := sess.Room(); current != "" && current != req.RoomID {
		return ErrInRoom
	}
	if _, err := s.roomManager.Join(ctx, req.RoomID, sess); err != nil {
		return err
	}
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), req.RoomID)
	return reply(sess, network.MsgTypeJoinRoom, network.RoomResponse{RoomID: req.RoomID})
}

func (s *GameServer) handleLeaveRoom(ctx context.Context, sess *session.Session) error {
	roomID := sess.Room()
	if roomID == "" {
		return ErrNotInRoom
	}
	if err := s.roomManager.Leave(ctx, sess); err != nil {
		return err
	}
	return reply(sess, network.MsgTypeLeaveRoom, network.RoomResponse{RoomID: roomID})
}

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) {
	roomID := sess.Room()
	if roomID == "" {
		logger.Log.Warnf("Session %s sent game action but is not in a room", sess.GetID())
		s.sendError(sess, packet.MsgID, ErrNotInRoom)
		return
	}

	rm, exists := s.roomManager.GetRoom(roomID)
	if !exists {
		logger.Log.Errorf("Room %s not found for session %s", roomID, sess.GetID())
		s.sendError(sess, packet.MsgID, persistence.ErrRoomNotFound)
		return
	}

	userID, _ := sess.Identity()
	if err := rm.HandleAction(userID, packet.Data); err != nil {
		// 非法操作只回给发起者
		var action struct {
			Type string `json:"type"`
		}
		json.Unmarshal(packet.Data, &action)
		reply(sess, network.MsgTypeActionRejected, network.ActionRejected{Type: action.Type, Error: err.Error()})
	}
}
