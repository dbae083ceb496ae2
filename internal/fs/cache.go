package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/werkraum/internal/logger"
)

// CachedFS wraps another FileSystem and caches directory listings,
// invalidating them through fsnotify events.
type CachedFS struct {
	underlying FileSystem
	dirCache   map[string]*dirCacheEntry
	cacheMu    sync.RWMutex
	cacheTTL   time.Duration
	maxEntries int
	watcher    *fsnotify.Watcher
	stopWatch  chan struct{}
}

type dirCacheEntry struct {
	entries   []*FileInfo
	timestamp time.Time
}

// NewCachedFS creates a caching wrapper around underlying.
func NewCachedFS(underlying FileSystem, cacheTTL time.Duration, maxEntries int) *CachedFS {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Global().Warn("failed to create file watcher: %v", err)
	}

	cfs := &CachedFS{
		underlying: underlying,
		dirCache:   make(map[string]*dirCacheEntry),
		cacheTTL:   cacheTTL,
		maxEntries: maxEntries,
		watcher:    watcher,
		stopWatch:  make(chan struct{}),
	}

	if watcher != nil {
		go cfs.watchFiles()
	}

	return cfs
}

// Close closes the filesystem watcher
func (cfs *CachedFS) Close() error {
	close(cfs.stopWatch)
	if cfs.watcher != nil {
		return cfs.watcher.Close()
	}
	return nil
}

// watchFiles monitors filesystem events and invalidates cache
func (cfs *CachedFS) watchFiles() {
	for {
		select {
		case <-cfs.stopWatch:
			return
		case event, ok := <-cfs.watcher.Events:
			if !ok {
				return
			}
			cfs.InvalidateDirCache(filepath.Dir(event.Name))
		case err, ok := <-cfs.watcher.Errors:
			if !ok {
				return
			}
			logger.Global().Error("filesystem watcher error: %v", err)
		}
	}
}

// InvalidateDirCache removes a directory from cache
func (cfs *CachedFS) InvalidateDirCache(path string) {
	cfs.cacheMu.Lock()
	defer cfs.cacheMu.Unlock()
	delete(cfs.dirCache, path)
}

// ClearCache removes all entries from cache
func (cfs *CachedFS) ClearCache() {
	cfs.cacheMu.Lock()
	defer cfs.cacheMu.Unlock()
	cfs.dirCache = make(map[string]*dirCacheEntry)
}

func (cfs *CachedFS) watch(path string) {
	if cfs.watcher == nil {
		return
	}
	if err := cfs.watcher.Add(path); err != nil {
		logger.Global().Warn("CachedFS: failed to add watcher for %s: %v", path, err)
	}
}

func (cfs *CachedFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	// File reads are never cached
	return cfs.underlying.ReadFile(ctx, path)
}

func (cfs *CachedFS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := cfs.underlying.WriteFile(ctx, path, data); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	cfs.InvalidateDirCache(dir)
	cfs.watch(dir)
	return nil
}

func (cfs *CachedFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	return cfs.underlying.Stat(ctx, path)
}

func (cfs *CachedFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	cfs.cacheMu.RLock()
	if entry, ok := cfs.dirCache[path]; ok {
		if time.Since(entry.timestamp) < cfs.cacheTTL {
			cfs.cacheMu.RUnlock()
			return entry.entries, nil
		}
	}
	cfs.cacheMu.RUnlock()

	entries, err := cfs.underlying.ListDir(ctx, path)
	if err != nil {
		return nil, err
	}

	cfs.cacheMu.Lock()
	if len(cfs.dirCache) >= cfs.maxEntries {
		// Simple eviction: remove oldest entry
		var oldestKey string
		var oldestTime time.Time
		for k, v := range cfs.dirCache {
			if oldestKey == "" || v.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.timestamp
			}
		}
		delete(cfs.dirCache, oldestKey)
	}
	cfs.dirCache[path] = &dirCacheEntry{
		entries:   entries,
		timestamp: time.Now(),
	}
	cfs.cacheMu.Unlock()

	cfs.watch(path)

	return entries, nil
}

func (cfs *CachedFS) Exists(ctx context.Context, path string) (bool, error) {
	return cfs.underlying.Exists(ctx, path)
}

func (cfs *CachedFS) Delete(ctx context.Context, path string) error {
	if err := cfs.underlying.Delete(ctx, path); err != nil {
		return err
	}
	cfs.InvalidateDirCache(filepath.Dir(path))
	return nil
}

func (cfs *CachedFS) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := cfs.underlying.Rename(ctx, oldPath, newPath); err != nil {
		return err
	}
	cfs.InvalidateDirCache(filepath.Dir(oldPath))
	cfs.InvalidateDirCache(filepath.Dir(newPath))
	return nil
}

func (cfs *CachedFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	if err := cfs.underlying.MkdirAll(ctx, path, perm); err != nil {
		return err
	}
	cfs.InvalidateDirCache(filepath.Dir(path))
	return nil
}

func (cfs *CachedFS) RemoveDir(ctx context.Context, path string) error {
	if err := cfs.underlying.RemoveDir(ctx, path); err != nil {
		return err
	}
	cfs.InvalidateDirCache(path)
	cfs.InvalidateDirCache(filepath.Dir(path))
	return nil
}

func (cfs *CachedFS) EvalSymlinks(path string) (string, error) {
	return cfs.underlying.EvalSymlinks(path)
}
