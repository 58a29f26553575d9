package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStats(t *testing.T) *StatsService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsService(client)
}

func TestStatsRecordAndOverview(t *testing.T) {
	stats := newTestStats(t)
	ctx := context.Background()

	entries := []ActivityEntry{
		{Username: "alice", Exercise: "Incline Dumbbell Press", MuscleGroup: "Chest", LoggedAt: time.Now()},
		{Username: "alice", Exercise: "Squat", MuscleGroup: "Legs", LoggedAt: time.Now()},
		{Username: "bob", Exercise: "Deadlift", MuscleGroup: "Back", LoggedAt: time.Now()},
	}
	for _, e := range entries {
		userID := int64(1)
		if e.Username == "bob" {
			userID = 2
		}
		if err := stats.RecordWorkout(ctx, userID, e); err != nil {
			t.Fatalf("RecordWorkout error: %v", err)
		}
	}

	ov, err := stats.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview error: %v", err)
	}
	if ov.TotalWorkouts != 3 {
		t.Fatalf("TotalWorkouts = %d, want 3", ov.TotalWorkouts)
	}
	if len(ov.Recent) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(ov.Recent))
	}
	// LPUSH ordering: newest first.
	if ov.Recent[0].Exercise != "Deadlift" {
		t.Fatalf("Recent[0].Exercise = %q, want Deadlift", ov.Recent[0].Exercise)
	}

	aliceCount, err := stats.UserWorkoutCount(ctx, 1)
	if err != nil {
		t.Fatalf("UserWorkoutCount error: %v", err)
	}
	if aliceCount != 2 {
		t.Fatalf("alice count = %d, want 2", aliceCount)
	}
}

func TestStatsEmptyOverview(t *testing.T) {
	stats := newTestStats(t)
	ctx := context.Background()

	ov, err := stats.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview error: %v", err)
	}
	if ov.TotalWorkouts != 0 || len(ov.Recent) != 0 {
		t.Fatalf("empty overview = %+v", ov)
	}

	n, err := stats.UserWorkoutCount(ctx, 42)
	if err != nil {
		t.Fatalf("UserWorkoutCount error: %v", err)
	}
	if n != 0 {
		t.Fatalf("missing counter = %d, want 0", n)
	}
}

func TestStatsRecentIsCapped(t *testing.T) {
	stats := newTestStats(t)
	ctx := context.Background()

	for i := 0; i < recentActivityMax+20; i++ {
		if err := stats.RecordWorkout(ctx, 1, ActivityEntry{Username: "alice", Exercise: "Squat", MuscleGroup: "Legs", LoggedAt: time.Now()}); err != nil {
			t.Fatalf("RecordWorkout error: %v", err)
		}
	}
	ov, err := stats.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview error: %v", err)
	}
	if len(ov.Recent) != recentActivityMax {
		t.Fatalf("len(Recent) = %d, want %d", len(ov.Recent), recentActivityMax)
	}
	if ov.TotalWorkouts != int64(recentActivityMax+20) {
		t.Fatalf("TotalWorkouts = %d, want %d", ov.TotalWorkouts, recentActivityMax+20)
	}
}

func TestStatsHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	stats := NewStatsService(client)

	if !stats.Healthy(context.Background()) {
		t.Fatal("running redis should report healthy")
	}
	mr.Close()
	if stats.Healthy(context.Background()) {
		t.Fatal("stopped redis should report unhealthy")
	}
}
