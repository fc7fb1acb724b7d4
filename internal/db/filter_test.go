package db

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterBuilder(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := NewFilter().
		Eq("owner_id", "u1").
		Lt("saved_at", cutoff).
		Build()

	if got["owner_id"] != "u1" {
		t.Fatalf("unexpected eq clause %v", got["owner_id"])
	}
	if lt, ok := got["saved_at"].(bson.M); !ok || !lt["$lt"].(time.Time).Equal(cutoff) {
		t.Fatalf("unexpected lt clause %v", got["saved_at"])
	}
	if len(Empty()) != 0 {
		t.Fatal("expected an empty filter")
	}
}
