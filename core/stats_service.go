package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	workoutCountKey     = "stats:workouts:total"
	userWorkoutCountKey = "stats:workouts:user:" // + user id
	recentActivityKey   = "stats:activity:recent"
	recentActivityMax   = 100
)

// ActivityEntry is one element of the recent-activity feed.
type ActivityEntry struct {
	Username    string    `json:"username"`
	Exercise    string    `json:"exercise"`
	MuscleGroup string    `json:"muscle_group"`
	LoggedAt    time.Time `json:"logged_at"`
}

// StatsOverview aggregates redis-held counters for the admin dashboard.
type StatsOverview struct {
	TotalWorkouts int64           `json:"total_workouts"`
	Recent        []ActivityEntry `json:"recent"`
}

// StatsService keeps best-effort activity counters in redis. Counters are
// advisory (the source of truth stays in postgres), so callers may ignore
// recording failures.
type StatsService struct {
	redis StatsRedis
}

func NewStatsService(redis StatsRedis) *StatsService {
	return &StatsService{redis: redis}
}

// RecordWorkout bumps the global and per-user counters and pushes the entry
// onto the capped recent-activity list.
func (s *StatsService) RecordWorkout(ctx context.Context, userID int64, entry ActivityEntry) error {
	if err := s.redis.Incr(ctx, workoutCountKey).Err(); err != nil {
		return err
	}
	if err := s.redis.Incr(ctx, fmt.Sprintf("%s%d", userWorkoutCountKey, userID)).Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.redis.LPush(ctx, recentActivityKey, string(payload)).Err(); err != nil {
		return err
	}
	return s.redis.LTrim(ctx, recentActivityKey, 0, recentActivityMax-1).Err()
}

// UserWorkoutCount returns the per-user counter; missing key counts as zero.
func (s *StatsService) UserWorkoutCount(ctx context.Context, userID int64) (int64, error) {
	val, err := s.redis.Get(ctx, fmt.Sprintf("%s%d", userWorkoutCountKey, userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

// Overview returns the global counter and the recent-activity feed. Entries
// that no longer unmarshal are skipped.
func (s *StatsService) Overview(ctx context.Context) (StatsOverview, error) {
	var ov StatsOverview
	total, err := s.redis.Get(ctx, workoutCountKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ov, err
	}
	ov.TotalWorkouts = total

	raw, err := s.redis.LRange(ctx, recentActivityKey, 0, recentActivityMax-1).Result()
	if err != nil {
		return ov, err
	}
	for _, item := range raw {
		var e ActivityEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		ov.Recent = append(ov.Recent, e)
	}
	return ov, nil
}

// Healthy reports whether redis answers a ping.
func (s *StatsService) Healthy(ctx context.Context) bool {
	return s.redis.Ping(ctx).Err() == nil
}
