package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/services"
)

const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   rpc.NewServer(),
	}, nil
}

// Register publishes the exported methods of rcvr.
func (s *Server) Register(rcvr interface{}) error {
	return s.server.Register(rcvr)
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	playerService *services.PlayerService
}

// NewGameService creates a new GameService.
func NewGameService(ps *services.PlayerService) *GameService {
	return &GameService{playerService: ps}
}

// GetPlayerStats is an RPC method returning a participant's record.
// It must follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
type GetPlayerArgs struct {
	UserID string
	Limit  int
}

type GetPlayerReply struct {
	Summary services.PlayerSummary
}

func (gs *GameService) GetPlayerStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	summary, err := gs.playerService.GetPlayerWithStats(ctx, args.UserID, args.Limit)
	if err != nil {
		return err
	}
	reply.Summary = summary
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room *game.Room
}

// GetRoom returns a spectator view of a room.
func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	r, err := gs.playerService.GetRoom(ctx, args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = r
	return nil
}
