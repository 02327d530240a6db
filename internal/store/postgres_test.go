package store

import (
    "encoding/hex"
    "testing"
)

func TestComputeDedupKeyFromID(t *testing.T) {
    body := []byte(`{"id":"solve_123","type":"solve.completed"}`)
    if got := computeDedupKey(body); got != "solve_123" {
        t.Fatalf("want solve_123, got %s", got)
    }
}

func TestComputeDedupKeyFromHash(t *testing.T) {
    got := computeDedupKey([]byte(`{"notId":"x"}`))
    b, err := hex.DecodeString(got)
    if err != nil {
        t.Fatalf("invalid hex: %v", err)
    }
    if len(b) != 8 {
        t.Fatalf("expected 8 bytes, got %d", len(b))
    }
}

func TestNullIfEmpty(t *testing.T) {
    if v := nullIfEmpty(""); v != nil {
        t.Fatal("empty string -> nil expected")
    }
    if v := nullIfEmpty("x"); v != "x" {
        t.Fatalf("got %v", v)
    }
}
