package core

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SystemStatus is the aggregated health view for the admin dashboard.
type SystemStatus struct {
	Database struct {
		Healthy bool `json:"healthy"`
	} `json:"database"`
	Redis struct {
		Healthy bool `json:"healthy"`
	} `json:"redis"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// CollectSystemStatus aggregates dependency health, memory, and uptime.
// All probes are best-effort; a failing dependency is reported, not fatal.
func CollectSystemStatus(ctx context.Context, db *pgxpool.Pool, stats *StatsService, startedAt time.Time) SystemStatus {
	var st SystemStatus

	if db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		st.Database.Healthy = db.Ping(pingCtx) == nil
		cancel()
	}
	if stats != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		st.Redis.Healthy = stats.Healthy(pingCtx)
		cancel()
	}

	// Memory (best-effort from /proc/meminfo)
	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}

	return st
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal
		if memAvailable <= memTotal {
			used = memTotal - memAvailable
		}
		// convert KiB -> bytes
		used *= 1024
		total *= 1024
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
