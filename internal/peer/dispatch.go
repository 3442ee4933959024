package peer

import (
	"context"

	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/codec"
	"github.com/lanforge/lanforge/internal/discovery"
	"github.com/lanforge/lanforge/internal/logging"
	"github.com/lanforge/lanforge/internal/room"
)

// dispatch runs on the engine's event loop. It must never be called from
// any other goroutine.
func (e *Engine) dispatch(f codec.Frame) {
	switch f.Type {
	case codec.FrameWelcome:
		e.handleWelcome(f)
	case codec.FrameStateSnapshot:
		e.handleStateSnapshot(f)
	case codec.FrameChat:
		e.handleChat(f)
	case codec.FramePing:
		e.handlePing(f)
	case codec.FrameKicked:
		e.handleKicked(f)
	case codec.FrameError:
		e.handleError(f)
	default:
		logging.Warn(context.Background(), "ignoring unrecognized frame type from coordinator", zap.String("type", string(f.Type)))
	}
}

func (e *Engine) handleWelcome(f codec.Frame) {
	payload, err := codec.DecodePayload[codec.WelcomePayload](f)
	if err != nil {
		logging.Warn(context.Background(), "malformed WELCOME", zap.Error(err))
		return
	}
	e.clientId = payload.ClientId
}

// handleStateSnapshot replaces the cached snapshot and, if this peer was
// just elected host by the new room state, starts announcing.
func (e *Engine) handleStateSnapshot(f codec.Frame) {
	payload, err := codec.DecodePayload[codec.StateSnapshotPayload[room.Snapshot]](f)
	if err != nil {
		logging.Warn(context.Background(), "malformed STATE_SNAPSHOT", zap.Error(err))
		return
	}

	snap := payload.Snapshot
	e.snapshot = &snap
	e.roomId = snap.Room.RoomId
	e.joinCode = snap.Room.JoinCode

	if e.callbacks.OnSnapshot != nil {
		e.callbacks.OnSnapshot(snap)
	}

	if snap.Room.HostDeviceId == e.deviceId {
		if e.announcer == nil {
			e.announcer = discovery.NewAnnouncer(e.log)
		}
		if !e.announcer.Running() {
			_ = e.announcer.Start(hostInfoFor(snap, e.clientId, e.coordinatorPort))
		}
	}
}

func (e *Engine) handleChat(f codec.Frame) {
	payload, err := codec.DecodePayload[codec.ChatBroadcastPayload](f)
	if err != nil {
		logging.Warn(context.Background(), "malformed CHAT", zap.Error(err))
		return
	}
	if e.callbacks.OnChat != nil {
		e.callbacks.OnChat(payload.FromDeviceId, payload.FromName, payload.Text, payload.Timestamp)
	}
}

func (e *Engine) handlePing(f codec.Frame) {
	pong := codec.NewFrame(codec.FramePong, f.RequestId, e.clientId, codec.PongPayload{})
	e.sendLocked(pong)
}

func (e *Engine) handleKicked(f codec.Frame) {
	payload, _ := codec.DecodePayload[codec.KickedPayload](f)
	logging.Warn(context.Background(), "kicked from room", zap.String("reason", payload.Reason))
	if e.callbacks.OnKicked != nil {
		e.callbacks.OnKicked(payload.Reason)
	}
	e.teardownConnection()
	e.setState(stateClosed)
}

func (e *Engine) handleError(f codec.Frame) {
	payload, err := codec.DecodePayload[codec.ErrorPayload](f)
	if err != nil {
		return
	}
	if e.callbacks.OnError != nil {
		e.callbacks.OnError(payload.Code, payload.Reason)
	}
}
