package leases

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"tetherd/pkg/models"
)

// Monitor keeps the parsed lease table current by watching the lease file
type Monitor struct {
	path     string
	onChange func(map[string]models.Client)

	clients map[string]models.Client
	watcher *fsnotify.Watcher
	mu      sync.RWMutex
	stopCh  chan struct{}
	done    chan struct{}
}

// NewMonitor creates a monitor for the given lease file. onChange may be nil.
func NewMonitor(path string, onChange func(map[string]models.Client)) *Monitor {
	return &Monitor{
		path:     path,
		onChange: onChange,
		clients:  make(map[string]models.Client),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads the lease file once and begins watching it.
// The parent directory is watched since dnsmasq may replace the file.
func (m *Monitor) Start() error {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := m.Reload(); err != nil {
		log.WithError(err).Warn("Failed to load DHCP leases")
	}

	// dnsmasq creates the lease file on first run, but not its directory
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		m.watcher.Close()
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := m.watcher.Add(dir); err != nil {
		m.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go m.watch()
	return nil
}

// Stop stops watching. It is safe to call once after Start.
func (m *Monitor) Stop() {
	close(m.stopCh)
	if m.watcher != nil {
		m.watcher.Close()
		<-m.done
	}
}

// Clients returns a copy of the current lease table
func (m *Monitor) Clients() map[string]models.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make(map[string]models.Client, len(m.clients))
	for mac, c := range m.clients {
		clients[mac] = c
	}
	return clients
}

// Reload re-parses the lease file
func (m *Monitor) Reload() error {
	clients, err := ParseFile(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.clients = clients
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"path":    m.path,
		"clients": len(clients),
	}).Debug("Loaded DHCP leases")

	if m.onChange != nil {
		m.onChange(m.Clients())
	}
	return nil
}

func (m *Monitor) watch() {
	defer close(m.done)

	target, _ := filepath.Abs(m.path)
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			name, _ := filepath.Abs(event.Name)
			if name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if err := m.Reload(); err != nil {
				log.WithError(err).Warn("Error reloading DHCP leases")
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("File watcher error")

		case <-m.stopCh:
			return
		}
	}
}
