package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/flightmap/internal/core/usecases"
	"github.com/samirrijal/flightmap/internal/pkg/metrics"
)

const defaultFrameInterval = 50 * time.Millisecond

// wsMessage is sent from client to control the animation.
type wsMessage struct {
	Action string  `json:"action"` // "speed" | "focus"
	Speed  float64 `json:"speed,omitempty"`
	Flight string  `json:"flight,omitempty"`
}

// WebSocketHandler streams frames of one map session. Connections subscribe
// to the session's tick loop, which advances the scheduler once per interval
// no matter how many clients watch; a connection only receives frames. The
// stream ends when the client disconnects or the session is unmounted.
// Clients may send {"action":"speed","speed":0.004} or {"action":"focus","flight":"BA117"}.
func WebSocketHandler(sessions *usecases.SessionManager, interval time.Duration) func(*websocket.Conn) {
	if interval <= 0 {
		interval = defaultFrameInterval
	}

	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		session, err := sessions.Get(c.Query("session"))
		if err != nil {
			data, _ := json.Marshal(map[string]string{"error": err.Error()})
			_ = c.WriteMessage(websocket.TextMessage, data)
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		slog.Info("ws client connected", "remote", remoteAddr, "session_id", session.ID())

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		frames, release := session.Subscribe(interval)
		defer release()

		done := make(chan struct{})
		go func() {
			ping := time.NewTicker(30 * time.Second)
			defer ping.Stop()
			for {
				select {
				case f, ok := <-frames:
					if !ok {
						_ = writeJSON(map[string]string{"status": "session closed"})
						_ = c.Close()
						return
					}
					if err := writeJSON(f); err != nil {
						return
					}
				case <-ping.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		scheduler := session.Scheduler()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "speed":
				if err := scheduler.SetSpeed(m.Speed); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				_ = writeJSON(map[string]interface{}{"status": "speed set", "speed": m.Speed})
			case "focus":
				vp, err := session.Focus(m.Flight)
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				_ = writeJSON(map[string]interface{}{"focus": m.Flight, "viewport": vp})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		slog.Info("ws client disconnected", "remote", remoteAddr, "session_id", session.ID())
	}
}
