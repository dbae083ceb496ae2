// Package fs abstracts filesystem access so the workspace layer can be
// exercised against an in-memory implementation in tests.
package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileInfo represents file metadata
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileSystem is an abstraction over filesystem operations
type FileSystem interface {
	// ReadFile reads the entire file
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile writes data to a file, creating parent directories
	WriteFile(ctx context.Context, path string, data []byte) error
	// Stat returns file information
	Stat(ctx context.Context, path string) (*FileInfo, error)
	// ListDir lists directory contents
	ListDir(ctx context.Context, path string) ([]*FileInfo, error)
	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes a file
	Delete(ctx context.Context, path string) error
	// Rename moves a file or directory to a new name
	Rename(ctx context.Context, oldPath, newPath string) error
	// MkdirAll creates a directory and all parent directories
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
	// RemoveDir removes an empty directory
	RemoveDir(ctx context.Context, path string) error

	Resolver
}

// Resolver is the narrow path-resolution capability used by boundary
// validation. EvalSymlinks returns the symlink-free form of path, or an
// error satisfying os.IsNotExist when path does not exist.
type Resolver interface {
	EvalSymlinks(path string) (string, error)
}

// OSFS is the real-disk implementation. Relative paths are resolved
// against baseDir.
type OSFS struct {
	baseDir string
}

// NewOSFS creates a filesystem rooted at baseDir.
func NewOSFS(baseDir string) *OSFS {
	return &OSFS{baseDir: baseDir}
}

func (ofs *OSFS) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ofs.baseDir, path)
}

func (ofs *OSFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(ofs.absPath(path))
}

func (ofs *OSFS) WriteFile(ctx context.Context, path string, data []byte) error {
	absPath := ofs.absPath(path)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return err
	}

	return os.WriteFile(absPath, data, 0644)
}

func (ofs *OSFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := os.Stat(ofs.absPath(path))
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (ofs *OSFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	entries, err := os.ReadDir(ofs.absPath(path))
	if err != nil {
		return nil, err
	}

	result := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, &FileInfo{
			Path:    filepath.Join(path, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}

	return result, nil
}

func (ofs *OSFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(ofs.absPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (ofs *OSFS) Delete(ctx context.Context, path string) error {
	return os.Remove(ofs.absPath(path))
}

func (ofs *OSFS) Rename(ctx context.Context, oldPath, newPath string) error {
	return os.Rename(ofs.absPath(oldPath), ofs.absPath(newPath))
}

func (ofs *OSFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	return os.MkdirAll(ofs.absPath(path), perm)
}

func (ofs *OSFS) RemoveDir(ctx context.Context, path string) error {
	return os.Remove(ofs.absPath(path))
}

func (ofs *OSFS) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(ofs.absPath(path))
}

// CopyFile copies a regular file from src to dst.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}
