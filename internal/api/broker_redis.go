package api

import (
    "context"
    "encoding/json"
    "os"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
    Subscribe(solveID string) chan SSEEvent
    Unsubscribe(solveID string, ch chan SSEEvent)
    Publish(solveID string, evt SSEEvent)
}

// In-memory broker already implemented in broker.go and satisfies EventBroker

// RedisBroker implements EventBroker over Redis Pub/Sub so that solve events
// reach subscribers connected to other replicas.
type RedisBroker struct {
    rdb  *redis.Client
    mu   sync.Mutex
    subs map[chan SSEEvent]*redis.PubSub
}

func NewRedisBroker() (*RedisBroker, error) {
    url := os.Getenv("REDIS_URL")
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    return &RedisBroker{rdb: rdb, subs: map[chan SSEEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(solveID string) chan SSEEvent {
    ch := make(chan SSEEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(solveID))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        // sole closer of ch: the range ends when Unsubscribe closes ps
        defer close(ch)
        for msg := range ps.Channel() {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

func (b *RedisBroker) Unsubscribe(solveID string, ch chan SSEEvent) {
    b.mu.Lock()
    ps := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(solveID string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    _ = b.rdb.Publish(ctx, b.chanName(solveID), data).Err()
}

func (b *RedisBroker) chanName(solveID string) string { return "solve:" + solveID }
