package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lanforge/lanforge/internal/codec"
	"github.com/lanforge/lanforge/internal/logging"
	"github.com/lanforge/lanforge/internal/metrics"
	"github.com/lanforge/lanforge/internal/room"
)

// dispatch runs on the coordinator's single serialized loop. It must
// never be called from any other goroutine.
func (co *Coordinator) dispatch(cn *connection, f codec.Frame) {
	switch f.Type {
	case codec.FramePing:
		co.handlePing(cn, f)
	case codec.FrameHello:
		co.handleHello(cn, f)
	case codec.FrameCreateRoom:
		co.requireHello(cn, f, co.handleCreateRoom)
	case codec.FrameJoinRoom:
		co.requireHello(cn, f, co.handleJoinRoom)
	case codec.FrameLeaveRoom:
		co.requireHello(cn, f, co.handleLeaveRoom)
	case codec.FrameChat:
		co.requireHello(cn, f, co.handleChat)
	case codec.FrameKick:
		co.requireHello(cn, f, co.handleKick)
	default:
		co.sendError(cn, f.RequestId, "UNSUPPORTED_TYPE", "Unsupported message type")
	}
}

// requireHello rejects any room-mutating frame from a connection that
// has not yet sent HELLO.
func (co *Coordinator) requireHello(cn *connection, f codec.Frame, handler func(*connection, codec.Frame)) {
	if _, _, ok := cn.identity(); !ok {
		co.sendError(cn, f.RequestId, "UNAUTHENTICATED", "Must send HELLO first")
		return
	}
	handler(cn, f)
}

func (co *Coordinator) handlePing(cn *connection, f codec.Frame) {
	reply := codec.NewFrame(codec.FramePong, f.RequestId, codec.ClientIDServer, codec.PongPayload{
		Timestamp: time.Now().UnixMilli(),
	})
	co.send(cn, reply)
}

func (co *Coordinator) handleHello(cn *connection, f codec.Frame) {
	payload, err := codec.DecodePayload[codec.HelloPayload](f)
	if err != nil {
		co.sendError(cn, f.RequestId, "MALFORMED_FRAME", err.Error())
		return
	}

	cn.setIdentity(room.DeviceId(payload.DeviceId), payload.Name)
	if err := co.store.UpdateClientId(room.DeviceId(payload.DeviceId), room.ClientId(cn.clientId)); err != nil && !errors.Is(err, room.ErrNotInRoom) {
		logging.Warn(context.Background(), "rebinding clientId on reconnect failed", zap.Error(err))
	}

	reply := codec.NewFrame(codec.FrameWelcome, f.RequestId, cn.clientId, codec.WelcomePayload{ClientId: cn.clientId})
	co.send(cn, reply)

	if roomId, ok := co.store.RoomOf(room.DeviceId(payload.DeviceId)); ok {
		co.broadcastSnapshot(roomId)
	}
}

func (co *Coordinator) handleCreateRoom(cn *connection, f codec.Frame) {
	payload, _ := codec.DecodePayload[codec.CreateRoomPayload](f)
	deviceId, name, _ := cn.identity()

	roomId := room.RoomId(uuid.NewString())
	_, err := co.store.CreateRoom(roomId, deviceId, room.ClientId(cn.clientId), name, payload.MaxPlayers, time.Now().UnixMilli())
	if err != nil {
		co.sendError(cn, f.RequestId, "CREATE_ROOM_FAILED", err.Error())
		return
	}

	co.roomId = roomId
	metrics.ActiveRooms.Set(1)
	co.broadcastSnapshot(roomId)
}

func (co *Coordinator) handleJoinRoom(cn *connection, f codec.Frame) {
	payload, err := codec.DecodePayload[codec.JoinRoomPayload](f)
	if err != nil {
		co.sendError(cn, f.RequestId, "MALFORMED_FRAME", err.Error())
		return
	}
	deviceId, name, _ := cn.identity()

	r, err := co.store.JoinRoomByCode(room.JoinCode(payload.JoinCode), deviceId, room.ClientId(cn.clientId), name, time.Now().UnixMilli())
	if err != nil {
		co.sendError(cn, f.RequestId, joinErrorCode(err), err.Error())
		return
	}

	co.broadcastSnapshot(r.RoomId)
}

func (co *Coordinator) handleLeaveRoom(cn *connection, f codec.Frame) {
	deviceId, _, _ := cn.identity()
	roomId, _ := co.store.RoomOf(deviceId)

	after, stillLive, err := co.store.LeaveRoom(deviceId)
	if err != nil {
		co.sendError(cn, f.RequestId, "NOT_IN_ROOM", err.Error())
		return
	}
	if stillLive {
		co.broadcastSnapshot(after.RoomId)
	} else if roomId != "" {
		co.broadcastRoomDestroyed(roomId)
	}
}

func (co *Coordinator) handleChat(cn *connection, f codec.Frame) {
	payload, err := codec.DecodePayload[codec.ChatSendPayload](f)
	if err != nil {
		co.sendError(cn, f.RequestId, "MALFORMED_FRAME", err.Error())
		return
	}
	deviceId, _, _ := cn.identity()

	entry, err := co.store.AppendChat(deviceId, payload.Text, time.Now().UnixMilli())
	if err != nil {
		co.sendError(cn, f.RequestId, "NOT_IN_ROOM", err.Error())
		metrics.FramesDispatched.WithLabelValues(string(codec.FrameChat), "error").Inc()
		return
	}
	metrics.FramesDispatched.WithLabelValues(string(codec.FrameChat), "ok").Inc()

	roomId, _ := co.store.RoomOf(deviceId)
	co.broadcastChat(roomId, entry)
	co.broadcastSnapshot(roomId)
}

func (co *Coordinator) handleKick(cn *connection, f codec.Frame) {
	payload, err := codec.DecodePayload[codec.KickPayload](f)
	if err != nil {
		co.sendError(cn, f.RequestId, "MALFORMED_FRAME", err.Error())
		return
	}
	deviceId, _, _ := cn.identity()

	r, err := co.store.Kick(deviceId, room.DeviceId(payload.TargetDeviceId))
	if err != nil {
		code := "NOT_HOST"
		if errors.Is(err, room.ErrNotInRoom) {
			code = "NOT_IN_ROOM"
		}
		co.sendError(cn, f.RequestId, code, err.Error())
		return
	}

	if target := co.connectionForDevice(room.DeviceId(payload.TargetDeviceId)); target != nil {
		kicked := codec.NewFrame(codec.FrameKicked, f.RequestId, codec.ClientIDServer, codec.KickedPayload{Reason: "Removed by host"})
		co.send(target, kicked)
	}

	co.broadcastSnapshot(r.RoomId)
}

// handleDisconnect runs when a connection's readPump exits. If the
// connection had joined a room, it leaves on the member's behalf and
// broadcasts the resulting snapshot.
func (co *Coordinator) handleDisconnect(cn *connection) {
	deviceId, _, ok := cn.identity()
	if !ok {
		return
	}

	after, stillLive, err := co.store.LeaveRoom(deviceId)
	if err != nil {
		return
	}
	if stillLive {
		co.broadcastSnapshot(after.RoomId)
	}
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrInvalidJoinCode):
		return "INVALID_JOIN_CODE"
	case errors.Is(err, room.ErrNameConflict):
		return "NAME_CONFLICT"
	case errors.Is(err, room.ErrRoomFull):
		return "ROOM_FULL"
	default:
		return "JOIN_FAILED"
	}
}
