package system

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"tetherd/internal/lines"
	"tetherd/pkg/models"
)

// Options locates the tools and pseudo-files the probes use
type Options struct {
	ProcDir string
	Su      string
	GetProp string
}

// DefaultOptions matches an Android device
func DefaultOptions() Options {
	return Options{
		ProcDir: "/proc",
		Su:      "/system/bin/su",
		GetProp: "/system/bin/getprop",
	}
}

// System runs privileged commands and reads kernel state
type System struct {
	runner Runner
	opts   Options
}

// New creates a System using runner for all external commands
func New(runner Runner, opts Options) *System {
	return &System{
		runner: runner,
		opts:   opts,
	}
}

// RootCommand runs command through su -c
func (s *System) RootCommand(ctx context.Context, command string) error {
	log.WithField("command", command).Debug("Root-Command")
	if _, err := s.runner.Run(ctx, s.opts.Su, "-c", command); err != nil {
		return fmt.Errorf("root command %q: %w", command, err)
	}
	return nil
}

// HasRoot reports whether root commands can be run: either this process is
// already root or the su binary is executable.
func (s *System) HasRoot() bool {
	if unix.Geteuid() == 0 {
		return true
	}
	if err := unix.Access(s.opts.Su, unix.X_OK); err != nil {
		log.WithError(err).WithField("su", s.opts.Su).Debug("Can't obtain root")
		return false
	}
	return true
}

// ChmodBin makes every helper in dir/bin executable
func (s *System) ChmodBin(ctx context.Context, dir string) error {
	return s.RootCommand(ctx, "chmod 0755 "+filepath.Join(dir, "bin")+"/*")
}

// GetProp returns a system property, empty if unset or getprop fails
func (s *System) GetProp(ctx context.Context, property string) string {
	out, err := s.runner.Run(ctx, s.opts.GetProp, property)
	if err != nil {
		log.WithError(err).WithField("property", property).Debug("getprop failed")
		return ""
	}

	value := ""
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		value = scanner.Text()
	}
	return strings.TrimSpace(value)
}

// NATEnabled reports whether IPv4 forwarding is on
func (s *System) NATEnabled() bool {
	content := lines.ReadTolerant(filepath.Join(s.opts.ProcDir, "sys/net/ipv4/ip_forward"))
	return slices.Contains(content, "1")
}

// KernelVersion returns the release field of /proc/version
func (s *System) KernelVersion() (string, error) {
	content, err := lines.Read(filepath.Join(s.opts.ProcDir, "version"))
	if err != nil {
		return "", err
	}
	if len(content) == 0 {
		return "", fmt.Errorf("empty kernel version")
	}

	fields := strings.Fields(content[0])
	if len(fields) < 3 {
		return "", fmt.Errorf("unexpected kernel version line %q", content[0])
	}
	return fields[2], nil
}

// HasKernelFeature reports whether a line of the compressed kernel config
// starts with feature, e.g. "CONFIG_NETFILTER=".
func (s *System) HasKernelFeature(feature string) (bool, error) {
	file, err := os.Open(filepath.Join(s.opts.ProcDir, "config.gz"))
	if err != nil {
		return false, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return false, fmt.Errorf("failed to open kernel config: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), feature) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// DataTraffic sums rx/tx bytes over every interface whose name starts with prefix
func (s *System) DataTraffic(prefix string) (models.Traffic, error) {
	var traffic models.Traffic
	if prefix == "" {
		return traffic, nil
	}

	fs, err := procfs.NewFS(s.opts.ProcDir)
	if err != nil {
		return traffic, err
	}
	netDev, err := fs.NetDev()
	if err != nil {
		return traffic, fmt.Errorf("failed to read interface counters: %w", err)
	}

	for name, line := range netDev {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		traffic.RxBytes += line.RxBytes
		traffic.TxBytes += line.TxBytes
	}
	return traffic, nil
}

// ModifiedTime returns the modification time of path, false if it does not exist
func ModifiedTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
