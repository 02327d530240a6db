package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "time"
)

// replayEvent reconstructs the terminal broker event for a cached solve.
func (s *Server) replayEvent(id string) (SSEEvent, bool) {
    cached := s.Solves.Get(id)
    if cached == nil || cached.Response == nil {
        return SSEEvent{}, false
    }
    resp := cached.Response
    typ := "solve.completed"
    if resp.Status == "Infeasible" { typ = "solve.infeasible" }
    return SSEEvent{Type: typ, Data: map[string]any{
        "solveId": id, "status": resp.Status, "tripCount": len(resp.ScheduledTrips),
        "ts": time.Now().UTC().Format(time.RFC3339),
    }}, true
}

// solveStream serves SSE for one solve id. Events arrive via the broker; a
// heartbeat keeps intermediaries from closing the connection.
func (s *Server) solveStream(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"solveId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    // replay the terminal event for finished solves; subscribers usually
    // learn the solve id only after the solve completed
    if evt, ok := s.replayEvent(id); ok {
        b, _ := json.Marshal(evt.Data)
        fmt.Fprintf(w, "event: %s\n", evt.Type)
        fmt.Fprintf(w, "data: %s\n\n", string(b))
        flusher.Flush()
    }
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"solveId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}
