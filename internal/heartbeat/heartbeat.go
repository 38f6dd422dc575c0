// Package heartbeat publishes each worker process's liveness and job
// throughput to Redis with a short TTL, so an operator can see which workers
// are alive and what they are doing without querying the Job Store.
package heartbeat

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "worker:heartbeat:"
	ttl         = 45 * time.Second
	flushPeriod = 5 * time.Second
)

// Key returns the Redis key a given worker id's heartbeat is stored under.
func Key(workerID string) string {
	return keyPrefix + workerID
}

// Snapshot is the JSON document persisted to Redis.
type Snapshot struct {
	WorkerID       string    `json:"worker_id"`
	Hostname       string    `json:"hostname"`
	PID            int       `json:"pid"`
	Concurrency    int       `json:"concurrency"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	Status         string    `json:"status"` // idle|busy|starting
	RunningCount   int       `json:"running_count"`
	CurrentJob     string    `json:"current_job,omitempty"`
	RunningJobs    []string  `json:"running_jobs,omitempty"`
	ProcessedTotal int64     `json:"processed_total"`
	FailedTotal    int64     `json:"failed_total"`
	LastError      string    `json:"last_error,omitempty"`
	MemoryRSSBytes uint64    `json:"memory_rss_bytes"`
	NumGoroutine   int       `json:"num_goroutine"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Snapshot) updateRuntimeStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.MemoryRSSBytes = ms.Sys
	s.NumGoroutine = runtime.NumGoroutine()
}

// State aggregates one worker process's running jobs and counters and
// flushes a Snapshot to Redis on a fixed interval.
type State struct {
	mu      sync.Mutex
	snap    Snapshot
	running map[string]time.Time
}

func NewState(workerID, hostname string, concurrency int) *State {
	return &State{
		snap: Snapshot{
			WorkerID:    workerID,
			Hostname:    hostname,
			PID:         os.Getpid(),
			Concurrency: concurrency,
			Status:      "starting",
			StartedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		},
		running: make(map[string]time.Time),
	}
}

// Start flushes immediately and then on flushPeriod until ctx is canceled.
func (s *State) Start(ctx context.Context, client *redis.Client) {
	s.flush(ctx, client)
	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx, client)
		}
	}
}

func (s *State) JobStarted(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Status = "busy"
	s.running[job] = time.Now()
	s.updateRunningFieldsLocked()
}

func (s *State) JobFinished(job string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, job)
	s.snap.ProcessedTotal++
	if err != nil {
		s.snap.FailedTotal++
		s.snap.LastError = err.Error()
	}
	if len(s.running) == 0 {
		s.snap.Status = "idle"
	} else {
		s.snap.Status = "busy"
	}
	s.updateRunningFieldsLocked()
}

func (s *State) updateRunningFieldsLocked() {
	s.snap.RunningCount = len(s.running)
	s.snap.RunningJobs = s.snap.RunningJobs[:0]
	for job := range s.running {
		if len(s.snap.RunningJobs) >= 3 {
			break
		}
		s.snap.RunningJobs = append(s.snap.RunningJobs, job)
	}
	if s.snap.RunningCount == 0 {
		s.snap.CurrentJob = ""
	} else {
		s.snap.CurrentJob = s.snap.RunningJobs[0]
	}
}

func (s *State) flush(ctx context.Context, client *redis.Client) {
	s.mu.Lock()
	s.snap.UptimeSeconds = int64(time.Since(s.snap.StartedAt).Seconds())
	s.snap.updateRuntimeStats()
	s.snap.UpdatedAt = time.Now()
	snapCopy := s.snap
	s.mu.Unlock()

	data, err := json.Marshal(snapCopy)
	if err != nil {
		return
	}
	client.Set(ctx, Key(snapCopy.WorkerID), data, ttl)
}

// List returns every live heartbeat, used by the admin system-status endpoint.
func List(ctx context.Context, client *redis.Client) ([]Snapshot, error) {
	var cursor uint64
	var out []Snapshot
	for {
		keys, next, err := client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			raw, err := client.Get(ctx, k).Bytes()
			if err != nil {
				continue
			}
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				out = append(out, snap)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}
