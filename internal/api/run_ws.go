package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type   string    `json:"type"`
	PlanID string    `json:"planId,omitempty"`
	Event  *RunEvent `json:"event,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// PlanWSHandler streams run events over a WebSocket. The client sends
// {"type":"subscribe","planId":...} for each plan it wants to follow
// and receives {"type":"event",...} frames until it unsubscribes or
// disconnects.
func (s *Server) PlanWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// One writer: forwarding goroutines and the keepalive ticker share
	// the connection through this mutex.
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := write(wsMessage{Type: "ping"}); err != nil {
					return
				}
			}
		}
	}()

	subs := map[string]chan RunEvent{}
	defer func() {
		for planID, ch := range subs {
			s.Broker.Unsubscribe(planID, ch)
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "subscribe":
			if msg.PlanID == "" {
				_ = write(wsMessage{Type: "error", Error: "planId required"})
				continue
			}
			if _, ok := subs[msg.PlanID]; ok {
				continue
			}
			ch := s.Broker.Subscribe(msg.PlanID)
			subs[msg.PlanID] = ch
			_ = write(wsMessage{Type: "subscribed", PlanID: msg.PlanID})
			go func(planID string, ch chan RunEvent) {
				for {
					select {
					case <-done:
						return
					case evt, ok := <-ch:
						if !ok {
							return
						}
						if err := write(wsMessage{Type: "event", PlanID: planID, Event: &evt}); err != nil {
							return
						}
					}
				}
			}(msg.PlanID, ch)
		case "unsubscribe":
			if ch, ok := subs[msg.PlanID]; ok {
				s.Broker.Unsubscribe(msg.PlanID, ch)
				delete(subs, msg.PlanID)
			}
		case "pong":
			// read deadline already extended above
		case "close":
			return
		}
	}
}
