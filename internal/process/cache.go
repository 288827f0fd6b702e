package process

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Snapshot maps a process id to its command line
type Snapshot map[string]string

// Cache answers "is a process running" from an incrementally refreshed
// snapshot. A command line is read only the first time its pid is seen.
type Cache struct {
	source Source

	mu       sync.Mutex
	snapshot Snapshot

	reads func(n int)
}

// NewCache creates an empty cache over source
func NewCache(source Source) *Cache {
	return &Cache{
		source:   source,
		snapshot: make(Snapshot),
	}
}

// OnRead registers a callback receiving the number of command lines read per refresh
func (c *Cache) OnRead(fn func(n int)) {
	c.mu.Lock()
	c.reads = fn
	c.mu.Unlock()
}

// IsRunning refreshes the snapshot and reports whether any command line
// contains name as a substring. "dns" therefore matches "dnsmasq".
func (c *Cache) IsRunning(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refresh(); err != nil {
		return false, err
	}

	for _, cmdLine := range c.snapshot {
		if strings.Contains(cmdLine, name) {
			return true, nil
		}
	}
	return false, nil
}

// Refresh rebuilds the snapshot without querying it
func (c *Cache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh()
}

// Snapshot returns a copy of the current snapshot
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := make(Snapshot, len(c.snapshot))
	for pid, cmdLine := range c.snapshot {
		snap[pid] = cmdLine
	}
	return snap
}

func (c *Cache) refresh() error {
	pids, err := c.source.PIDs()
	if err != nil {
		return fmt.Errorf("failed to refresh process cache: %w", err)
	}

	next := make(Snapshot, len(pids))
	read := 0
	for _, pid := range pids {
		if cmdLine, ok := c.snapshot[pid]; ok {
			next[pid] = cmdLine
			continue
		}

		cmdLine, err := c.source.CmdLine(pid)
		read++
		if err != nil {
			// exited between listing and reading
			log.WithError(err).WithField("pid", pid).Trace("Failed to read command line")
			cmdLine = ""
		}
		next[pid] = cmdLine
	}

	c.snapshot = next
	if c.reads != nil {
		c.reads(read)
	}
	return nil
}
