package leases

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"tetherd/internal/lines"
	"tetherd/pkg/models"
	"tetherd/pkg/utils"
)

// minFields is epoch, MAC, IP and client name
const minFields = 4

// Parse converts dnsmasq lease lines into clients keyed by MAC address.
// Malformed lines are skipped. A MAC seen twice keeps the later line.
func Parse(content []string) map[string]models.Client {
	clients := make(map[string]models.Client)

	for n, line := range content {
		if strings.TrimSpace(line) == "" {
			continue
		}

		client, err := parseLeaseLine(line)
		if err != nil {
			log.WithError(err).WithField("line", n+1).Debug("Skipping invalid lease line")
			continue
		}

		clients[client.MAC] = client
	}

	return clients
}

// ParseFile reads and parses a lease file. A missing file has no clients.
func ParseFile(path string) (map[string]models.Client, error) {
	content, err := lines.Read(path)
	if err != nil {
		if errors.Is(err, lines.ErrNotFound) {
			return map[string]models.Client{}, nil
		}
		return nil, utils.WrapError(err, "failed to read leases file")
	}
	return Parse(content), nil
}

// parseLeaseLine parses a single lease line
func parseLeaseLine(line string) (models.Client, error) {
	var client models.Client

	fields := strings.Split(line, " ")
	if len(fields) < minFields {
		return client, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}

	timestamp, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return client, fmt.Errorf("invalid lease time %q: %w", fields[0], err)
	}

	client.ConnectedAt = time.Unix(timestamp, 0)
	client.MAC = utils.NormalizeMAC(fields[1])
	client.IP = fields[2]
	client.Name = fields[3]
	client.Connected = true

	return client, nil
}
