package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/changeling/game"
	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/room"
	"github.com/wfunc/changeling/services"
)

const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	rpc      *rpc.Server
}

// NewServer listens on addr. Services are added with Register.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{listener: listener, rpc: rpc.NewServer()}, nil
}

// Register publishes the receiver's exported methods under name.
func (s *Server) Register(name string, rcvr any) error {
	return s.rpc.RegisterName(name, rcvr)
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Start serves until Stop is called.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	logger.Log.Info("Stopping RPC server.")
	s.listener.Close()
}

// AdminService exposes operator queries and the forced finish. Methods
// follow the net/rpc signature: exported args, pointer reply, error result.
type AdminService struct {
	registry *room.Registry
	engine   *game.Engine
	records  *services.RecordService
}

func NewAdminService(registry *room.Registry, engine *game.Engine, records *services.RecordService) *AdminService {
	return &AdminService{registry: registry, engine: engine, records: records}
}

// RoomsArgs filters by turn state when TurnState is set.
type RoomsArgs struct {
	TurnState models.TurnState
}

type RoomsReply struct {
	Rooms []models.RoomSummary
}

// Rooms lists the live rooms.
func (a *AdminService) Rooms(args *RoomsArgs, reply *RoomsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	rooms, err := a.registry.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		if args.TurnState == "" || r.TurnState == args.TurnState {
			reply.Rooms = append(reply.Rooms, r)
		}
	}
	return nil
}

type HistoryArgs struct {
	RoomID string
	Limit  int
}

type HistoryReply struct {
	Games []models.GameRecord
}

// History lists finished games, newest first.
func (a *AdminService) History(args *HistoryArgs, reply *HistoryReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	games, err := a.records.History(ctx, args.RoomID, args.Limit)
	if err != nil {
		return err
	}
	reply.Games = games
	return nil
}

type FinishArgs struct {
	RoomID  string
	Outcome models.Outcome
}

type FinishReply struct {
	TurnState models.TurnState
}

// Finish ends a running game with the given outcome, e.g. to close a table
// an operator has to take down.
func (a *AdminService) Finish(args *FinishArgs, reply *FinishReply) error {
	switch args.Outcome {
	case models.OutcomeInnocentVictory, models.OutcomeChangelingVictory, models.OutcomeAbandoned:
	default:
		return models.ErrBadRequest
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := a.engine.FinishGame(ctx, args.RoomID, args.Outcome); err != nil {
		return err
	}
	logger.Log.Infof("Room %s finished by operator: %s", args.RoomID, args.Outcome)
	reply.TurnState = models.StateFinished
	return nil
}
