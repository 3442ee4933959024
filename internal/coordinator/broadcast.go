package coordinator

import (
	"github.com/google/uuid"

	"github.com/lanforge/lanforge/internal/codec"
	"github.com/lanforge/lanforge/internal/metrics"
	"github.com/lanforge/lanforge/internal/room"
)

// send encodes and enqueues a single frame to one connection, dropping
// it with a metrics bump if that connection's outbound buffer is full.
func (co *Coordinator) send(cn *connection, f codec.Frame) {
	outcome := "ok"
	if !cn.enqueue(codec.Encode(f)) {
		outcome = "dropped"
	}
	metrics.FramesDispatched.WithLabelValues(string(f.Type), outcome).Inc()
}

func (co *Coordinator) sendError(cn *connection, requestId, code, reason string) {
	f := codec.NewFrame(codec.FrameError, requestId, codec.ClientIDServer, codec.ErrorPayload{
		Reason: reason,
		Code:   code,
	})
	co.send(cn, f)
}

// connectionForDevice finds the live connection bound to deviceId, if
// any. Must only be called from the dispatch loop.
func (co *Coordinator) connectionForDevice(deviceId room.DeviceId) *connection {
	for _, cn := range co.connections {
		if did, _, ok := cn.identity(); ok && did == deviceId {
			return cn
		}
	}
	return nil
}

// broadcastSnapshot sends a fresh STATE_SNAPSHOT to every connection
// currently bound to a member of roomId.
func (co *Coordinator) broadcastSnapshot(roomId room.RoomId) {
	snap, err := co.store.MakeSnapshot(roomId)
	if err != nil {
		return
	}

	f := codec.NewFrame(codec.FrameStateSnapshot, uuid.NewString(), codec.ClientIDServer,
		codec.StateSnapshotPayload[room.Snapshot]{Snapshot: snap})

	for _, m := range snap.Room.Members {
		if cn := co.connectionForDevice(m.DeviceId); cn != nil {
			co.send(cn, f)
		}
	}
	metrics.SnapshotBroadcasts.Inc()
	metrics.RoomMembers.Set(float64(len(snap.Room.Members)))
}

// broadcastChat sends a CHAT broadcast frame to every member of roomId
// for real-time display, independent of the STATE_SNAPSHOT that also
// follows a chat append.
func (co *Coordinator) broadcastChat(roomId room.RoomId, entry room.ChatEntry) {
	snap, err := co.store.MakeSnapshot(roomId)
	if err != nil {
		return
	}

	f := codec.NewFrame(codec.FrameChat, uuid.NewString(), codec.ClientIDServer, codec.ChatBroadcastPayload{
		FromDeviceId: string(entry.FromDeviceId),
		FromName:     entry.FromName,
		Text:         entry.Text,
		Timestamp:    entry.Timestamp,
	})

	for _, m := range snap.Room.Members {
		if cn := co.connectionForDevice(m.DeviceId); cn != nil {
			co.send(cn, f)
		}
	}
}

// broadcastRoomDestroyed records that roomId is gone: if it is the room
// this coordinator hosts, it clears the hosted room id and sets the
// active-rooms gauge to 0. It sends no frame to any connection.
func (co *Coordinator) broadcastRoomDestroyed(roomId room.RoomId) {
	if co.roomId == roomId {
		co.roomId = ""
		metrics.ActiveRooms.Set(0)
	}
}
