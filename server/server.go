package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/changeling/config"
	"github.com/wfunc/changeling/game"
	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/monitor"
	"github.com/wfunc/changeling/network"
	"github.com/wfunc/changeling/roles"
	"github.com/wfunc/changeling/room"
	changeling_rpc "github.com/wfunc/changeling/rpc"
	"github.com/wfunc/changeling/services"
	"github.com/wfunc/changeling/session"
	"github.com/wfunc/changeling/state"
	"github.com/wfunc/changeling/store"
	"github.com/wfunc/changeling/timer"
)

const shutdownTimeout = 5 * time.Second

type GameServer struct {
	cfg        config.ServerConfig
	upgrader   websocket.Upgrader
	registry   *room.Registry
	sessions   *session.Manager
	engine     *game.Engine
	dispatcher *Dispatcher
	monitor    *monitor.Monitor
	timers     *timer.TimerManager
	records    *services.RecordService
}

func NewGameServer(cfg *config.Config, st store.Store, records *services.RecordService) *GameServer {
	s := &GameServer{
		cfg:      cfg.Server,
		sessions: session.NewManager(),
		monitor:  monitor.NewMonitor(cfg.Server.MetricsNamespace),
		timers:   timer.NewTimerManager(0),
		records:  records,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.registry = room.NewRegistry(st, room.Options{
		Capacity: cfg.Game.MaxPlayers,
		IDLength: cfg.Game.RoomIDLength,
	})
	records.OnRecord(func(rec models.GameRecord) {
		s.monitor.IncGamesFinished(string(rec.Outcome))
	})
	s.engine = game.NewEngine(game.Options{
		Registry:  s.registry,
		Machine:   state.NewMachine(policies(cfg.Game.Actions)),
		Assigner:  roles.NewAssigner(cfg.Game.Changelings),
		Deliverer: s.sessions,
		OnFinish:  records.Record,
	})
	s.dispatcher = NewDispatcher(s.engine, s.sessions, s.monitor)
	return s
}

func policies(a config.ActionsConfig) map[state.ActionKind]state.ActionPolicy {
	return map[state.ActionKind]state.ActionPolicy{
		state.ActionBurn:    {EndsTurn: a.Burn.EndsTurn, RequiresTurnOwner: a.Burn.RequiresTurnOwner},
		state.ActionConvert: {EndsTurn: a.Convert.EndsTurn, RequiresTurnOwner: a.Convert.RequiresTurnOwner},
	}
}

// Handler serves the websocket endpoint, metrics and a health check.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", s.monitor.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run serves HTTP and RPC until ctx is cancelled or a listener fails.
func (s *GameServer) Run(ctx context.Context) error {
	var rpcServer *changeling_rpc.Server
	if s.cfg.RPCAddress != "" {
		var err error
		if rpcServer, err = changeling_rpc.NewServer(s.cfg.RPCAddress); err != nil {
			return err
		}
		if err := rpcServer.Register("Admin", changeling_rpc.NewAdminService(s.registry, s.engine, s.records)); err != nil {
			return err
		}
	}

	httpServer := &http.Server{Addr: s.cfg.HTTPAddress, Handler: s.Handler()}
	if s.cfg.MetricsInterval > 0 {
		s.timers.AddTimer(0, s.cfg.MetricsInterval, s.refreshMetrics)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if rpcServer != nil {
		g.Go(rpcServer.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down game server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if rpcServer != nil {
			rpcServer.Stop()
		}
		s.Close()
		return err
	})
	return g.Wait()
}

// Close disconnects every client and stops background timers.
func (s *GameServer) Close() {
	s.sessions.CloseAll()
	s.timers.Stop()
}

func (s *GameServer) refreshMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := s.registry.Count(ctx)
	if err != nil {
		logger.Log.Warnf("Failed to count rooms: %v", err)
		return
	}
	s.monitor.SetActiveRooms(n)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

// handleConnection owns one client from connect to disconnect. The
// connection's id doubles as the user_id.
func (s *GameServer) handleConnection(conn *network.WSConnection) {
	sess := session.NewSession(uuid.New().String(), conn, s.cfg.SendQueue)
	s.sessions.Add(sess)
	s.monitor.IncOnlinePlayers()
	go sess.WritePump()

	logger.Log.Infof("New connection from %s, user ID: %s", conn.RemoteAddr(), sess.ID)

	if hb := s.cfg.Heartbeat; hb > 0 {
		conn.SetHeartbeat(hb)
		ping := s.timers.AddTimer(hb, hb, func() {
			if err := conn.Ping(); err != nil {
				sess.Close()
			}
		})
		defer s.timers.RemoveTimer(ping)
	}

	defer func() {
		logger.Log.Infof("Connection closed from %s, user ID: %s", conn.RemoteAddr(), sess.ID)
		s.sessions.Remove(sess.ID)
		s.monitor.DecOnlinePlayers()
		sess.Close()
		s.disconnect(sess.ID)
	}()

	for {
		req, err := conn.ReadRequest()
		if errors.Is(err, network.ErrMalformed) {
			s.dispatcher.Reject(sess.ID, models.ErrBadRequest)
			continue
		}
		if err != nil {
			return
		}
		req.Sender = sess.ID
		sess.Touch()
		s.dispatcher.Dispatch(context.Background(), req)
	}
}

// disconnect turns a dropped connection into a leave.
func (s *GameServer) disconnect(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.engine.LeaveGame(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotAuthorized) {
		logger.Log.Errorf("Failed to remove %s after disconnect: %v", userID, err)
	}
}
