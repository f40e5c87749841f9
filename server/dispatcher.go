package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/changeling/broadcast"
	"github.com/wfunc/changeling/game"
	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/monitor"
	"github.com/wfunc/changeling/network"
)

// HandlerFunc serves one request on behalf of req.Sender.
type HandlerFunc func(ctx context.Context, req *network.Request) error

// Dispatcher routes requests by name and reports failures to the sender only.
type Dispatcher struct {
	engine    *game.Engine
	deliverer broadcast.Deliverer
	monitor   *monitor.Monitor
	handlers  map[string]HandlerFunc
}

func NewDispatcher(engine *game.Engine, deliverer broadcast.Deliverer, mon *monitor.Monitor) *Dispatcher {
	d := &Dispatcher{
		engine:    engine,
		deliverer: deliverer,
		monitor:   mon,
		handlers:  make(map[string]HandlerFunc),
	}
	d.Handle(network.ReqHostGame, d.hostGame)
	d.Handle(network.ReqJoinGame, d.joinGame)
	d.Handle(network.ReqLeaveGame, d.leaveGame)
	d.Handle(network.ReqStartGame, d.startGame)
	d.Handle(network.ReqNextTurn, d.nextTurn)
	d.Handle(network.ReqBurnPlayer, d.burnPlayer)
	d.Handle(network.ReqConvert, d.convert)
	d.Handle(network.ReqRestartGame, d.restartGame)
	d.Handle(network.ReqHeartbeat, func(context.Context, *network.Request) error { return nil })
	return d
}

func (d *Dispatcher) Handle(name string, h HandlerFunc) {
	d.handlers[name] = h
}

// Dispatch serves req. Errors never leave the dispatcher: the sender gets an
// error_occured message and nobody else hears of it.
func (d *Dispatcher) Dispatch(ctx context.Context, req *network.Request) {
	start := time.Now()
	logger.Log.Debugf("Request %s from %s", req.Name, req.Sender)
	d.monitor.IncMessagesReceived(req.Name)
	defer func() { d.monitor.ObserveMessageLatency(time.Since(start)) }()

	h, ok := d.handlers[req.Name]
	if !ok {
		d.Reject(req.Sender, fmt.Errorf("%w: unknown request %q", models.ErrBadRequest, req.Name))
		return
	}
	if err := h(ctx, req); err != nil {
		d.Reject(req.Sender, err)
	}
}

// Reject reports err to userID.
func (d *Dispatcher) Reject(userID string, err error) {
	code := models.ErrorKind(err)
	d.monitor.IncRequestErrors(code)
	if models.IsRequestError(err) {
		logger.Log.Infof("Request from %s rejected (%s): %v", userID, code, err)
	} else {
		logger.Log.Errorf("Request from %s failed: %v", userID, err)
	}
	d.deliverer.Deliver([]broadcast.Outbound{broadcast.Error(userID, err)})
}

func decode(req *network.Request, v any) error {
	if err := req.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrBadRequest, req.Name, err)
	}
	return nil
}

func normalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (d *Dispatcher) hostGame(ctx context.Context, req *network.Request) error {
	var p network.HostGamePayload
	if err := decode(req, &p); err != nil {
		return err
	}
	_, err := d.engine.HostGame(ctx, req.Sender, p.Name, p.Portrait)
	return err
}

func (d *Dispatcher) joinGame(ctx context.Context, req *network.Request) error {
	var p network.JoinGamePayload
	if err := decode(req, &p); err != nil {
		return err
	}
	return d.engine.JoinGame(ctx, req.Sender, normalizeRoomID(p.RoomID), p.Name, p.Portrait)
}

func (d *Dispatcher) leaveGame(ctx context.Context, req *network.Request) error {
	return d.engine.LeaveGame(ctx, req.Sender)
}

func (d *Dispatcher) startGame(ctx context.Context, req *network.Request) error {
	return d.engine.StartGame(ctx, req.Sender)
}

func (d *Dispatcher) nextTurn(ctx context.Context, req *network.Request) error {
	return d.engine.NextTurn(ctx, req.Sender)
}

func (d *Dispatcher) burnPlayer(ctx context.Context, req *network.Request) error {
	var p network.TargetPayload
	if err := decode(req, &p); err != nil {
		return err
	}
	return d.engine.BurnPlayer(ctx, req.Sender, p.UserID)
}

func (d *Dispatcher) convert(ctx context.Context, req *network.Request) error {
	var p network.TargetPayload
	if err := decode(req, &p); err != nil {
		return err
	}
	return d.engine.ConvertChangeling(ctx, req.Sender, p.UserID)
}

func (d *Dispatcher) restartGame(ctx context.Context, req *network.Request) error {
	return d.engine.RestartGame(ctx, req.Sender)
}
