package api

import (
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/gorilla/websocket"
)

// Minimal WebSocket protocol (graphql-transport-ws like) to stream solve events

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
    Type    string          `json:"type"`
    ID      string          `json:"id,omitempty"`
    Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
    Query     string         `json:"query"`
    Variables map[string]any `json:"variables"`
}

// SolveWSHandler handles /v1/solves/ws
func (s *Server) SolveWSHandler(w http.ResponseWriter, r *http.Request) {
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    // Track subscriptions: id -> solveID and channel
    type sub struct {
        solveID string
        ch      chan SSEEvent
    }
    subs := map[string]sub{}

    // Read loop
    conn.SetReadLimit(1 << 20)
    _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
    conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

    write := func(v any) error { return conn.WriteJSON(v) }

    // Expect connection_init first
    for {
        var msg wsMessage
        if err := conn.ReadJSON(&msg); err != nil {
            break
        }
        switch msg.Type {
        case "connection_init":
            _ = write(wsMessage{Type: "connection_ack"})
            // Start keepalive
            go func() {
                ticker := time.NewTicker(20 * time.Second)
                defer ticker.Stop()
                for range ticker.C {
                    if err := write(wsMessage{Type: "ping"}); err != nil {
                        return
                    }
                }
            }()
        case "ping":
            _ = write(wsMessage{Type: "pong"})
        case "subscribe":
            var pl subscribePayload
            _ = json.Unmarshal(msg.Payload, &pl)
            sid := ""
            if pl.Variables != nil {
                if v, ok := pl.Variables["solveId"].(string); ok {
                    sid = v
                }
            }
            if sid == "" {
                _ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"solveId required"}`)})
                _ = write(wsMessage{Type: "complete", ID: msg.ID})
                continue
            }
            // determine requested field: solveEvents (default) or infeasibilities
            field := "solveEvents"
            if strings.Contains(strings.ToLower(pl.Query), "infeasibilities") {
                field = "infeasibilities"
            }
            ch := s.Broker.Subscribe(sid)
            subs[msg.ID] = sub{solveID: sid, ch: ch}
            // replay the terminal event for finished solves
            if evt, ok := s.replayEvent(sid); ok {
                if !(field == "infeasibilities" && evt.Type != "solve.infeasible") {
                    payload, _ := json.Marshal(map[string]any{"data": map[string]any{field: evt.Data}})
                    _ = write(wsMessage{Type: "next", ID: msg.ID, Payload: payload})
                }
            }
            go func(id string, c chan SSEEvent, field string) {
                for evt := range c {
                    if field == "infeasibilities" && evt.Type != "solve.infeasible" {
                        continue
                    }
                    data := map[string]any{field: evt.Data}
                    payload, _ := json.Marshal(map[string]any{"data": data})
                    _ = write(wsMessage{Type: "next", ID: id, Payload: payload})
                }
                _ = write(wsMessage{Type: "complete", ID: id})
            }(msg.ID, ch, field)
        case "complete":
            if s0, ok := subs[msg.ID]; ok {
                s.Broker.Unsubscribe(s0.solveID, s0.ch)
                delete(subs, msg.ID)
            }
        default:
            // ignore
        }
    }
    for id, s0 := range subs {
        s.Broker.Unsubscribe(s0.solveID, s0.ch)
        delete(subs, id)
    }
}
