package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFS is an in-memory filesystem for testing. It understands symlinks
// so boundary-validation tests can exercise escape attempts without disk.
type MockFS struct {
	files    map[string][]byte
	dirs     map[string]bool
	symlinks map[string]string // link path -> target (absolute or relative to link dir)
	mu       sync.RWMutex
}

// NewMockFS creates an empty in-memory filesystem.
func NewMockFS() *MockFS {
	return &MockFS{
		files:    make(map[string][]byte),
		dirs:     make(map[string]bool),
		symlinks: make(map[string]string),
	}
}

// AddDir registers a directory and its ancestors.
func (mfs *MockFS) AddDir(path string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.addDirLocked(filepath.Clean(path))
}

// AddSymlink registers a symlink at linkPath pointing at target.
func (mfs *MockFS) AddSymlink(linkPath, target string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.symlinks[filepath.Clean(linkPath)] = target
	mfs.addDirLocked(filepath.Dir(filepath.Clean(linkPath)))
}

func (mfs *MockFS) addDirLocked(dir string) {
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		mfs.dirs[dir] = true
		dir = filepath.Dir(dir)
	}
	if dir == string(filepath.Separator) {
		mfs.dirs[dir] = true
	}
}

func (mfs *MockFS) existsLocked(path string) bool {
	if _, ok := mfs.files[path]; ok {
		return true
	}
	if mfs.dirs[path] {
		return true
	}
	_, ok := mfs.symlinks[path]
	return ok
}

func notExist(op, path string) error {
	return &os.PathError{Op: op, Path: path, Err: os.ErrNotExist}
}

func (mfs *MockFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	data, ok := mfs.files[filepath.Clean(path)]
	if !ok {
		return nil, notExist("open", path)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (mfs *MockFS) WriteFile(ctx context.Context, path string, data []byte) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	clean := filepath.Clean(path)
	stored := make([]byte, len(data))
	copy(stored, data)
	mfs.files[clean] = stored
	mfs.addDirLocked(filepath.Dir(clean))
	return nil
}

func (mfs *MockFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	clean := filepath.Clean(path)
	if mfs.dirs[clean] {
		return &FileInfo{Path: path, ModTime: time.Now(), IsDir: true}, nil
	}
	if data, ok := mfs.files[clean]; ok {
		return &FileInfo{Path: path, Size: int64(len(data)), ModTime: time.Now()}, nil
	}
	return nil, notExist("stat", path)
}

func (mfs *MockFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	clean := filepath.Clean(path)
	if !mfs.dirs[clean] {
		return nil, notExist("open", path)
	}

	seen := make(map[string]*FileInfo)
	prefix := clean + string(filepath.Separator)

	for filePath, data := range mfs.files {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rel := strings.TrimPrefix(filePath, prefix)
		if idx := strings.IndexByte(rel, filepath.Separator); idx >= 0 {
			// Entry inside a subdirectory; surface the subdirectory itself
			sub := filepath.Join(clean, rel[:idx])
			seen[sub] = &FileInfo{Path: sub, ModTime: time.Now(), IsDir: true}
			continue
		}
		seen[filePath] = &FileInfo{Path: filePath, Size: int64(len(data)), ModTime: time.Now()}
	}

	for dir := range mfs.dirs {
		if filepath.Dir(dir) == clean && dir != clean {
			if _, ok := seen[dir]; !ok {
				seen[dir] = &FileInfo{Path: dir, ModTime: time.Now(), IsDir: true}
			}
		}
	}

	entries := make([]*FileInfo, 0, len(seen))
	for _, info := range seen {
		entries = append(entries, info)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

func (mfs *MockFS) Exists(ctx context.Context, path string) (bool, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.existsLocked(filepath.Clean(path)), nil
}

func (mfs *MockFS) Delete(ctx context.Context, path string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	clean := filepath.Clean(path)
	if _, ok := mfs.files[clean]; !ok {
		return notExist("remove", path)
	}
	delete(mfs.files, clean)
	return nil
}

func (mfs *MockFS) Rename(ctx context.Context, oldPath, newPath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	oldClean := filepath.Clean(oldPath)
	newClean := filepath.Clean(newPath)

	if data, ok := mfs.files[oldClean]; ok {
		delete(mfs.files, oldClean)
		mfs.files[newClean] = data
		mfs.addDirLocked(filepath.Dir(newClean))
		return nil
	}

	if mfs.dirs[oldClean] {
		delete(mfs.dirs, oldClean)
		mfs.addDirLocked(newClean)
		prefix := oldClean + string(filepath.Separator)
		for filePath, data := range mfs.files {
			if strings.HasPrefix(filePath, prefix) {
				delete(mfs.files, filePath)
				mfs.files[filepath.Join(newClean, strings.TrimPrefix(filePath, prefix))] = data
			}
		}
		return nil
	}

	return notExist("rename", oldPath)
}

func (mfs *MockFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.addDirLocked(filepath.Clean(path))
	return nil
}

func (mfs *MockFS) RemoveDir(ctx context.Context, path string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	clean := filepath.Clean(path)
	if !mfs.dirs[clean] {
		return notExist("remove", path)
	}

	prefix := clean + string(filepath.Separator)
	for filePath := range mfs.files {
		if strings.HasPrefix(filePath, prefix) {
			return &os.PathError{Op: "remove", Path: path, Err: errors.New("directory not empty")}
		}
	}
	for dir := range mfs.dirs {
		if strings.HasPrefix(dir, prefix) {
			return &os.PathError{Op: "remove", Path: path, Err: errors.New("directory not empty")}
		}
	}

	delete(mfs.dirs, clean)
	return nil
}

// EvalSymlinks resolves symlinks component by component, mirroring
// filepath.EvalSymlinks over the in-memory state.
func (mfs *MockFS) EvalSymlinks(path string) (string, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.resolveLocked(filepath.Clean(path), 0)
}

func (mfs *MockFS) resolveLocked(path string, depth int) (string, error) {
	if depth > 16 {
		return "", &os.PathError{Op: "lstat", Path: path, Err: errors.New("too many levels of symbolic links")}
	}

	var current string
	rest := path
	if filepath.IsAbs(path) {
		current = string(filepath.Separator)
		rest = strings.TrimPrefix(path, string(filepath.Separator))
	} else {
		current = "."
	}

	for _, part := range strings.Split(rest, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		candidate := filepath.Join(current, part)
		if target, ok := mfs.symlinks[candidate]; ok {
			if !filepath.IsAbs(target) {
				target = filepath.Join(current, target)
			}
			resolved, err := mfs.resolveLocked(filepath.Clean(target), depth+1)
			if err != nil {
				return "", err
			}
			current = resolved
			continue
		}
		current = candidate
	}

	if !mfs.existsLocked(current) {
		return "", notExist("lstat", path)
	}
	return current, nil
}
