package agentloop

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

var (
	// ErrPathRequired is returned when a tool receives an empty path.
	ErrPathRequired = errors.New("path is required")
	// ErrPathOutsideWorkspace is returned when a tool path resolves outside
	// the workspace root.
	ErrPathOutsideWorkspace = errors.New("path escapes workspace root")
)

// DirEntry represents a filesystem directory entry.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// ExecutionEnvironment abstracts where tool operations run. Every path is
// interpreted relative to the working directory and confined to it.
type ExecutionEnvironment interface {
	ReadFile(path string) (string, error)
	WriteFile(path string, content string) error
	ListDirectory(path string) ([]DirEntry, error)

	// ResolvePath maps a tool path to an absolute path inside the workspace.
	ResolvePath(path string) (string, error)

	WorkingDirectory() string
	Platform() string
	OSVersion() string
}

// LocalExecutionEnvironment runs file tools against the local filesystem.
type LocalExecutionEnvironment struct {
	root string
}

// NewLocalExecutionEnvironment creates an environment rooted at workingDir.
// The root must exist and be a directory; symlinks in it are resolved once.
func NewLocalExecutionEnvironment(workingDir string) (*LocalExecutionEnvironment, error) {
	root := strings.TrimSpace(workingDir)
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %q: %w", abs, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %q", resolved)
	}
	return &LocalExecutionEnvironment{root: resolved}, nil
}

func (e *LocalExecutionEnvironment) WorkingDirectory() string {
	return e.root
}

func (e *LocalExecutionEnvironment) Platform() string {
	return runtime.GOOS
}

func (e *LocalExecutionEnvironment) OSVersion() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// ResolvePath joins relative paths onto the root, resolves every symlink in
// the result, including dangling ones, and rejects anything that lands
// outside the root. The returned path is the fully resolved one.
func (e *LocalExecutionEnvironment) ResolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrPathRequired
	}

	candidate := filepath.Clean(path)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(e.root, candidate)
	}

	resolved, err := resolveSymlinks(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	if !hasPathPrefix(e.root, resolved) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideWorkspace, path)
	}
	return resolved, nil
}

func (e *LocalExecutionEnvironment) ReadFile(path string) (string, error) {
	resolved, err := e.ResolvePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (e *LocalExecutionEnvironment) WriteFile(path string, content string) error {
	resolved, err := e.ResolvePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// ListDirectory returns the entries of a directory sorted by name.
func (e *LocalExecutionEnvironment) ListDirectory(path string) ([]DirEntry, error) {
	resolved, err := e.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		d := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			d.Size = info.Size()
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

const maxSymlinkHops = 255

var errSymlinkLoop = errors.New("too many levels of symbolic links")

// resolveSymlinks walks an absolute path one component at a time and
// substitutes each symlink with its target, whether or not the target
// exists. Components that do not exist are kept as written.
func resolveSymlinks(path string) (string, error) {
	vol := filepath.VolumeName(path)
	resolved := vol + string(filepath.Separator)
	pending := splitPath(path[len(vol):])
	hops := 0

	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]
		switch part {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, part)
		info, err := os.Lstat(next)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			resolved = next
			continue
		case err != nil:
			return "", err
		case info.Mode()&fs.ModeSymlink == 0:
			resolved = next
			continue
		}

		if hops++; hops > maxSymlinkHops {
			return "", errSymlinkLoop
		}
		target, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(resolved, target)
		}
		tvol := filepath.VolumeName(target)
		pending = append(splitPath(target[len(tvol):]), pending...)
		resolved = tvol + string(filepath.Separator)
	}
	return filepath.Clean(resolved), nil
}

func splitPath(p string) []string {
	return strings.Split(p, string(filepath.Separator))
}

func hasPathPrefix(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
