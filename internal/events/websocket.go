package events

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Relay streams bus events to websocket clients as JSON. A client may pass
// ?job_id=<id> to receive only that job's progress.
type Relay struct {
	bus    *Bus
	buffer int
	logger *slog.Logger
}

func NewRelay(bus *Bus, buffer int, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Relay{bus: bus, buffer: buffer, logger: logger}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Error("events.ws.upgrade_failed", "error", err)
		return
	}
	jobFilter := r.URL.Query().Get("job_id")

	ch, cancel := rl.bus.Subscribe(rl.buffer)
	defer cancel()
	defer func() { _ = conn.Close() }()

	rl.logger.Debug("events.ws.connected", "remote", r.RemoteAddr, "job_id", jobFilter)

	// reader: detect client disconnect
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					rl.logger.Warn("events.ws.read_error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			rl.logger.Debug("events.ws.disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if jobFilter != "" && ev.JobID != jobFilter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				rl.logger.Warn("events.ws.write_failed", "error", err)
				return
			}
		}
	}
}
