// Package admission gates case execution on scheduling capacity. Two modes
// exist: a self-managed in-process counter, and an advisory controller that
// queries a remote capacity endpoint when the authority for shared capacity
// lives outside this process.
package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status is a capacity snapshot.
type Status struct {
	Capacity  int      `json:"capacity"`
	InUse     int      `json:"in_use"`
	Available int      `json:"available"`
	Tasks     []string `json:"tasks,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// Controller grants and returns admission slots.
type Controller interface {
	// Acquire attempts to take one slot for the named task.
	Acquire(task string) bool
	// Release returns the task's slot. Releasing without a prior
	// successful Acquire is a no-op.
	Release(task string)
	// Snapshot reports current capacity usage.
	Snapshot() Status
}

// SelfManaged tracks capacity with an in-process counter. Acquire, Release
// and Snapshot are atomic relative to each other.
type SelfManaged struct {
	capacity int
	log      *slog.Logger

	mu    sync.Mutex
	inUse int
	tasks []string
}

// NewSelfManaged creates a controller with the given fixed capacity.
// Capacities below one are raised to one.
func NewSelfManaged(capacity int, log *slog.Logger) *SelfManaged {
	if capacity < 1 {
		capacity = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &SelfManaged{capacity: capacity, log: log}
}

// Acquire takes a slot when one is available.
func (c *SelfManaged) Acquire(task string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inUse >= c.capacity {
		c.log.Warn("admission refused", "task", task, "in_use", c.inUse, "capacity", c.capacity)
		return false
	}
	c.inUse++
	if task != "" {
		c.tasks = append(c.tasks, task)
	}
	c.log.Debug("slot acquired", "task", task, "in_use", c.inUse, "capacity", c.capacity)
	return true
}

// Release returns a slot and drops the task from the running list.
func (c *SelfManaged) Release(task string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inUse > 0 {
		c.inUse--
	}
	for i, name := range c.tasks {
		if name == task {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			break
		}
	}
}

// Snapshot reports current usage.
func (c *SelfManaged) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := make([]string, len(c.tasks))
	copy(tasks, c.tasks)
	return Status{
		Capacity:  c.capacity,
		InUse:     c.inUse,
		Available: c.capacity - c.inUse,
		Tasks:     tasks,
		Timestamp: time.Now().Unix(),
	}
}

// APIQueried delegates capacity decisions to an external endpoint. Acquire
// is advisory: it re-queries availability rather than reserving a slot, so
// a race window between query and use is inherent to this mode.
type APIQueried struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

// NewAPIQueried creates a controller querying the given JSON endpoint.
func NewAPIQueried(url string, client *http.Client, log *slog.Logger) *APIQueried {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &APIQueried{url: url, client: client, log: log}
}

// Acquire reports whether the remote authority shows available capacity.
func (c *APIQueried) Acquire(task string) bool {
	return c.Snapshot().Available > 0
}

// Release is a no-op: the remote authority owns the accounting.
func (c *APIQueried) Release(task string) {}

// Snapshot queries the remote capacity endpoint. Query failures yield an
// empty status, which refuses admission.
func (c *APIQueried) Snapshot() Status {
	status := Status{Timestamp: time.Now().Unix()}
	if c.url == "" {
		c.log.Warn("api admission mode without an endpoint url")
		return status
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, c.url, nil)
	if err != nil {
		c.log.Error("build capacity request", "err", err)
		return status
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("query capacity endpoint", "url", c.url, "err", err)
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Error("capacity endpoint returned non-200", "url", c.url, "status", resp.StatusCode)
		return status
	}
	var remote Status
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		c.log.Error("decode capacity response", "err", fmt.Errorf("decode %q: %w", c.url, err))
		return status
	}
	remote.Timestamp = status.Timestamp
	return remote
}
