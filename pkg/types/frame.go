package types

import (
	"errors"
	"path/filepath"
)

// Frame names a reference directory that relative paths resolve against.
type Frame string

// Reference frames.
const (
	FrameRoot         Frame = "root"   // Project root.
	FrameProcessCwd   Frame = "cwd"    // Working directory of the poe process.
	FrameSourceConfig Frame = "config" // Directory of the config that declared the entry.
	FrameExecDir      Frame = "exec"   // Directory the task runs in.
)

var validFrames = map[Frame]bool{
	FrameRoot:         true,
	FrameProcessCwd:   true,
	FrameSourceConfig: true,
	FrameExecDir:      true,
}

// Valid reports whether f is a known frame.
func (f Frame) Valid() bool {
	return validFrames[f]
}

// Frame variables injected into every resolved environment.
const (
	VarRoot    = "POE_ROOT"
	VarCwd     = "POE_CWD"
	VarPwd     = "POE_PWD"
	VarConfDir = "POE_CONF_DIR"
	VarExecDir = "POE_EXEC_DIR"
)

// PathFrame is the set of reference directories visible at one point of
// resolution. All fields are absolute paths.
type PathFrame struct {
	Root       string
	ProcessCwd string
	ConfigDir  string
	ExecDir    string
}

// Dir returns the directory for frame f.
func (p PathFrame) Dir(f Frame) (string, error) {
	switch f {
	case FrameRoot:
		return p.Root, nil
	case FrameProcessCwd:
		return p.ProcessCwd, nil
	case FrameSourceConfig:
		return p.ConfigDir, nil
	case FrameExecDir:
		return p.ExecDir, nil
	default:
		return "", ErrUnknownFrame
	}
}

// Join resolves rel against the directory of frame f. Absolute paths are
// returned cleaned and unchanged.
func (p PathFrame) Join(f Frame, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel), nil
	}
	dir, err := p.Dir(f)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, rel), nil
}

// WithConfigDir returns a copy of p whose source config frame is dir.
func (p PathFrame) WithConfigDir(dir string) PathFrame {
	p.ConfigDir = dir
	return p
}

// ErrUnknownFrame is returned for a frame name outside the known set.
var ErrUnknownFrame = errors.New("unknown reference frame")
