package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Ning0612/Downsort/internal/domain"
)

// PIDFileName is the server PID file inside the data directory
const PIDFileName = "serve.pid"

// Info is what a running server publishes about itself
type Info struct {
	PID  int
	Addr string
}

// PIDFile guards a single `downsort serve` instance per data directory
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// PIDPath returns the PID file location inside dataDir
func PIDPath(dataDir string) string {
	return filepath.Join(dataDir, PIDFileName)
}

// Path returns the PID file location
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire records the current process as the server listening on addr.
// A stale file left by a dead process is replaced.
func (p *PIDFile) Acquire(addr string) error {
	if info, err := p.Read(); err == nil {
		if isProcessRunning(info.PID) {
			return fmt.Errorf("%w: pid %d on %s", domain.ErrAlreadyRunning, info.PID, info.Addr)
		}
		// Stale PID file
		os.Remove(p.path)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), addr)
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read parses the PID file
func (p *PIDFile) Read() (Info, error) {
	f, err := os.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, domain.ErrNotRunning
		}
		return Info{}, fmt.Errorf("failed to read PID file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Info{}, fmt.Errorf("failed to read PID file: %w", err)
	}
	if len(lines) == 0 {
		return Info{}, errors.New("empty PID file")
	}

	pid, err := strconv.Atoi(lines[0])
	if err != nil || pid <= 0 {
		return Info{}, fmt.Errorf("invalid PID in file: %q", lines[0])
	}

	info := Info{PID: pid}
	if len(lines) > 1 {
		info.Addr = lines[1]
	}
	return info, nil
}

// Running returns the live server, or ErrNotRunning
func (p *PIDFile) Running() (Info, error) {
	info, err := p.Read()
	if err != nil {
		return Info{}, err
	}
	if !isProcessRunning(info.PID) {
		return Info{}, fmt.Errorf("%w: stale PID file for pid %d", domain.ErrNotRunning, info.PID)
	}
	return info, nil
}

// Release removes the PID file if this process owns it
func (p *PIDFile) Release() error {
	info, err := p.Read()
	if err != nil || info.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Stop asks the running server to shut down
func (p *PIDFile) Stop() (Info, error) {
	info, err := p.Running()
	if err != nil {
		return Info{}, err
	}
	if info.PID == os.Getpid() {
		return Info{}, fmt.Errorf("refusing to signal own process %d", info.PID)
	}
	return info, killProcess(info.PID)
}
