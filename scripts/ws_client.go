// Package main runs a demo WebSocket client for solve events.
package main

import (
    "bytes"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "net/url"
    "os"
    "time"

    "github.com/gorilla/websocket"
)

type wsMessage struct {
    Type    string          `json:"type"`
    ID      string          `json:"id,omitempty"`
    Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
    port := os.Getenv("PORT")
    if port == "" {
        port = "8080"
    }
    base := fmt.Sprintf("http://localhost:%s", port)

    // Generate a dataset and solve it
    genReq, _ := http.NewRequest(http.MethodPost, base+"/v1/generate-training-data", bytes.NewReader([]byte(`{"num_producers":2,"num_consumers":3,"num_periods":6,"seed":42}`)))
    genReq.Header.Set("Content-Type", "application/json")
    genReq.Header.Set("X-Tenant-Id", "t_demo")
    genResp, err := http.DefaultClient.Do(genReq)
    if err != nil {
        log.Fatal(err)
    }
    var payload json.RawMessage
    if err := json.NewDecoder(genResp.Body).Decode(&payload); err != nil {
        log.Fatal(err)
    }
    _ = genResp.Body.Close()

    req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(payload))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_demo")
    req.Header.Set("X-Role", "planner")
    resp, err := http.DefaultClient.Do(req)
    if err != nil {
        log.Fatal(err)
    }
    defer func() { _ = resp.Body.Close() }()
    var solveResp struct {
        SolveID string `json:"solve_id"`
        Status  string `json:"status"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&solveResp); err != nil {
        log.Fatal(err)
    }
    if solveResp.SolveID == "" {
        log.Fatal("no solve id returned")
    }
    log.Printf("Solve ID: %s (%s)", solveResp.SolveID, solveResp.Status)

    // Connect WS
    u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solves/ws"}
    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_demo")
    hdr.Set("X-Role", "planner")
    c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
    if err != nil {
        log.Fatal("dial:", err)
    }
    defer func() { _ = c.Close() }()

    // connection_init
    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
        log.Fatal(err)
    }
    // subscribe to solveEvents
    sp := map[string]any{
        "query":     "subscription($solveId: ID!) { solveEvents(solveId: $solveId) }",
        "variables": map[string]any{"solveId": solveResp.SolveID},
    }
    pl, _ := json.Marshal(sp)
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
        log.Fatal(err)
    }

    done := make(chan struct{})
    go func() {
        defer close(done)
        for {
            var m wsMessage
            if err := c.ReadJSON(&m); err != nil {
                log.Printf("read: %v", err)
                return
            }
            log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
        }
    }()

    // Wait briefly to receive the replayed terminal event and keepalives
    select {
    case <-time.After(3 * time.Second):
    case <-done:
    }
}
