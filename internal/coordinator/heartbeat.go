package coordinator

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanforge/lanforge/internal/codec"
	"github.com/lanforge/lanforge/internal/metrics"
)

// heartbeatLoop ticks every heartbeatInterval; for each connection idle
// longer than heartbeatTimeout it closes the connection, otherwise it
// sends a PING. Any incoming frame refreshes lastActive via
// connection.touch, called from readPump.
func (co *Coordinator) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-co.stopOnce:
			return
		case <-ticker.C:
			co.actions <- co.checkHeartbeats
		}
	}
}

func (co *Coordinator) checkHeartbeats() {
	for _, cn := range co.connections {
		if cn.idleSince() > heartbeatTimeout {
			metrics.HeartbeatTimeouts.Inc()
			cn.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Heartbeat timeout"),
				time.Now().Add(time.Second))
			cn.conn.Close()
			continue
		}
		ping := codec.NewFrame(codec.FramePing, "", codec.ClientIDServer, codec.PingPayload{
			Timestamp: time.Now().UnixMilli(),
		})
		co.send(cn, ping)
	}
}
