package process

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// Source lists live process ids and resolves their command lines
type Source interface {
	// PIDs returns the ids of all live processes. Non-numeric entries are not ids.
	PIDs() ([]string, error)
	// CmdLine returns the command line of a process, empty if it has none.
	CmdLine(pid string) (string, error)
}

// ProcFS is a Source reading a procfs mount
type ProcFS struct {
	fs procfs.FS
}

// NewProcFS opens the procfs mounted at mountPoint, usually /proc
func NewProcFS(mountPoint string) (*ProcFS, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", mountPoint, err)
	}
	return &ProcFS{fs: fs}, nil
}

// PIDs implements Source
func (p *ProcFS) PIDs() ([]string, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	pids := make([]string, 0, len(procs))
	for _, proc := range procs {
		pids = append(pids, strconv.Itoa(proc.PID))
	}
	return pids, nil
}

// CmdLine implements Source. Arguments are joined with a single space.
func (p *ProcFS) CmdLine(pid string) (string, error) {
	id, err := strconv.Atoi(pid)
	if err != nil {
		return "", fmt.Errorf("invalid pid %q: %w", pid, err)
	}

	proc, err := p.fs.Proc(id)
	if err != nil {
		return "", err
	}
	args, err := proc.CmdLine()
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}
