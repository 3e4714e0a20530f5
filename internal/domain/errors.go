package domain

import (
	"errors"
	"fmt"
)

// Filesystem errors - 檔案系統層錯誤
var (
	// ErrNotFound indicates the requested path does not exist
	ErrNotFound = errors.New("path not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile indicates expected a regular file
	ErrNotFile = errors.New("not a regular file")

	// ErrUnreadable indicates content could not be read
	ErrUnreadable = errors.New("unreadable file")
)

// Fingerprint errors - 指紋計算錯誤
var (
	// ErrInvalidAlgorithm indicates an unsupported hash algorithm
	ErrInvalidAlgorithm = errors.New("unsupported algorithm")

	// ErrFileTooLarge indicates content exceeded the configured maximum
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// Config errors - 設定檔錯誤
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")
)

// Server errors - 服務程序錯誤
var (
	// ErrAlreadyRunning indicates another server holds the PID file
	ErrAlreadyRunning = errors.New("server already running")

	// ErrNotRunning indicates no live server owns the PID file
	ErrNotRunning = errors.New("server not running")
)

// WarningOp identifies the step that produced a scan warning
type WarningOp string

const (
	OpList        WarningOp = "list"
	OpStat        WarningOp = "stat"
	OpFingerprint WarningOp = "fingerprint"
)

// ScanWarning is a non-fatal per-entry failure attached to a result
type ScanWarning struct {
	Path string    `json:"path" yaml:"path"`
	Op   WarningOp `json:"op" yaml:"op"`
	Err  string    `json:"error" yaml:"error"`
}

// NewScanWarning builds a warning from an error
func NewScanWarning(op WarningOp, path string, err error) ScanWarning {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ScanWarning{Path: path, Op: op, Err: msg}
}

func (w ScanWarning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Op, w.Path, w.Err)
}
