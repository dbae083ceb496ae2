// Package workspace implements a boundary-enforcing file-operation layer
// with best-effort transactional rollback over plain filesystem calls.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/codefionn/werkraum/internal/fs"
	"github.com/codefionn/werkraum/internal/logger"
)

// ConfirmFunc is the injected yes/no decision point consulted before a
// mutating operation when confirmation is required. It blocks the caller
// until a decision is produced.
type ConfirmFunc func(operation, path, detail string) bool

// ConfirmMode selects per-call confirmation behavior.
type ConfirmMode int

const (
	// ConfirmDefault follows the manager-wide configuration.
	ConfirmDefault ConfirmMode = iota
	// ConfirmAlways consults the gate regardless of configuration.
	ConfirmAlways
	// ConfirmNever skips the gate for this call.
	ConfirmNever
)

// WriteOptions controls a single write operation.
type WriteOptions struct {
	Append           bool
	Confirm          ConfirmMode
	SkipContentCheck bool
}

// MutateOptions controls delete, rename, mkdir and diff operations.
type MutateOptions struct {
	Confirm ConfirmMode
}

// Options configures a Manager.
type Options struct {
	// Root is the workspace root directory; created if missing.
	Root string
	// AllowedPaths are additional boundary anchors, equal in authority
	// to the root; created if missing.
	AllowedPaths []string
	// RequireConfirmation makes mutating operations consult the gate
	// unless overridden per call.
	RequireConfirmation bool
	// Confirm is the confirmation gate. A nil gate denies whenever
	// confirmation is required.
	Confirm ConfirmFunc
	// DenyPatterns overrides the built-in content deny list.
	DenyPatterns []string
	// FS overrides the filesystem; defaults to the real disk.
	FS fs.FileSystem
	// Logger is the audit sink; defaults to the global logger.
	Logger *logger.Logger
}

// Manager is the facade over path validation, content scanning, the
// confirmation gate and the single current transaction. It is not safe
// for concurrent use; callers must serialize access.
type Manager struct {
	fsys           fs.FileSystem
	validator      *PathValidator
	content        *ContentValidator
	confirm        ConfirmFunc
	requireConfirm bool
	log            *logger.Logger
	tx             *Transaction
}

// NewManager builds a Manager, canonicalizing the boundary set and
// creating missing workspace directories.
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewOSFS("")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	log = log.WithPrefix("workspace")

	// Boundary directories must exist before canonicalization so their
	// symlink-resolved form is available.
	for _, dir := range append([]string{opts.Root}, opts.AllowedPaths...) {
		expanded, err := expandHome(dir)
		if err != nil {
			return nil, err
		}
		if err := fsys.MkdirAll(ctx, expanded, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}

	validator, err := NewPathValidator(opts.Root, opts.AllowedPaths, fsys)
	if err != nil {
		return nil, err
	}

	content, err := NewContentValidator(opts.DenyPatterns)
	if err != nil {
		return nil, err
	}

	return &Manager{
		fsys:           fsys,
		validator:      validator,
		content:        content,
		confirm:        opts.Confirm,
		requireConfirm: opts.RequireConfirmation,
		log:            log,
	}, nil
}

// Root returns the canonical workspace root.
func (m *Manager) Root() string {
	return m.validator.Root()
}

// Validator exposes the path validator for callers that only need
// boundary checks.
func (m *Manager) Validator() *PathValidator {
	return m.validator
}

// InTransaction reports whether a transaction is currently open.
func (m *Manager) InTransaction() bool {
	return m.tx != nil && m.tx.open()
}

// Begin opens a transaction. A second Begin fails with
// ErrTransactionState and leaves the open transaction untouched.
func (m *Manager) Begin() error {
	if m.InTransaction() {
		return fmt.Errorf("%w: transaction %s is already open", ErrTransactionState, m.tx.id)
	}

	tx, err := beginTransaction(m.fsys, m.log)
	if err != nil {
		return err
	}
	m.tx = tx
	return nil
}

// Commit closes the open transaction, discarding all backups.
func (m *Manager) Commit() error {
	if m.tx == nil {
		return fmt.Errorf("%w: no open transaction", ErrTransactionState)
	}
	err := m.tx.commit()
	m.tx = nil
	return err
}

// Rollback undoes every operation of the open transaction in reverse
// order. Rollback failure is fatal and must not be retried.
func (m *Manager) Rollback(ctx context.Context) error {
	if m.tx == nil {
		return fmt.Errorf("%w: no open transaction", ErrTransactionState)
	}
	err := m.tx.rollback(ctx)
	m.tx = nil
	return err
}

// ReadFile returns the content of path. In text mode (binary=false) a
// payload that looks binary is refused.
func (m *Manager) ReadFile(ctx context.Context, path string, binary bool) ([]byte, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return nil, err
	}

	info, err := m.fsys.Stat(ctx, canon)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if info.IsDir {
		return nil, fmt.Errorf("%w: %s", ErrIsADirectory, path)
	}

	data, err := m.fsys.ReadFile(ctx, canon)
	if err != nil {
		return nil, err
	}

	if !binary && isLikelyBinaryFile(canon, data) {
		return nil, fmt.Errorf("%s looks binary; request a binary read", path)
	}

	return data, nil
}

// WriteFile writes content to path, creating missing parent directories.
// The returned bool is false when the confirmation gate declined; that is
// a soft negative, not an error.
func (m *Manager) WriteFile(ctx context.Context, path string, content []byte, opts WriteOptions) (bool, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return false, err
	}

	info, err := m.fsys.Stat(ctx, canon)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if exists && info.IsDir {
		return false, fmt.Errorf("%w: %s", ErrIsADirectory, path)
	}

	if !opts.SkipContentCheck && !hasBinaryContent(content) {
		if match := m.content.Check(string(content)); match != nil {
			return false, fmt.Errorf("%w: pattern %s at line %d (%q)",
				ErrContentRejected, match.PatternName, match.LineNumber, match.MatchedText)
		}
	}

	verb := "write"
	if opts.Append {
		verb = "append"
	}
	if !m.confirmed(verb, path, fmt.Sprintf("%d bytes", len(content)), opts.Confirm) {
		m.log.Info("%s to %s declined by confirmation gate", verb, path)
		return false, nil
	}

	data := content
	if opts.Append && exists {
		old, err := m.fsys.ReadFile(ctx, canon)
		if err != nil {
			return false, err
		}
		data = append(append([]byte(nil), old...), content...)
	}

	if m.InTransaction() {
		if err := m.tx.recordWrite(ctx, canon); err != nil {
			return false, err
		}
	}

	if err := m.fsys.WriteFile(ctx, canon, data); err != nil {
		return false, err
	}

	m.log.Info("%s: %s (%d bytes)", verb, path, len(data))
	return true, nil
}

// DeleteFile removes a regular file.
func (m *Manager) DeleteFile(ctx context.Context, path string, opts MutateOptions) (bool, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return false, err
	}

	info, err := m.fsys.Stat(ctx, canon)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return false, err
	}
	if info.IsDir {
		return false, fmt.Errorf("%w: %s", ErrIsADirectory, path)
	}

	if !m.confirmed("delete", path, "", opts.Confirm) {
		m.log.Info("delete of %s declined by confirmation gate", path)
		return false, nil
	}

	if m.InTransaction() {
		if err := m.tx.recordDelete(ctx, canon); err != nil {
			return false, err
		}
	}

	if err := m.fsys.Delete(ctx, canon); err != nil {
		return false, err
	}

	m.log.Info("delete: %s", path)
	return true, nil
}

// RenameFile moves oldPath to newPath. The destination must not exist;
// rename never silently overwrites.
func (m *Manager) RenameFile(ctx context.Context, oldPath, newPath string, opts MutateOptions) (bool, error) {
	oldCanon, err := m.validator.Validate(oldPath)
	if err != nil {
		return false, err
	}
	newCanon, err := m.validator.Validate(newPath)
	if err != nil {
		return false, err
	}

	if _, err := m.fsys.Stat(ctx, oldCanon); err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrNotFound, oldPath)
		}
		return false, err
	}

	if exists, err := m.fsys.Exists(ctx, newCanon); err != nil {
		return false, err
	} else if exists {
		return false, fmt.Errorf("%w: %s", ErrAlreadyExists, newPath)
	}

	if !m.confirmed("rename", oldPath, "to "+newPath, opts.Confirm) {
		m.log.Info("rename of %s declined by confirmation gate", oldPath)
		return false, nil
	}

	if m.InTransaction() {
		if err := m.tx.recordRename(oldCanon, newCanon); err != nil {
			return false, err
		}
	}

	if err := m.fsys.MkdirAll(ctx, filepath.Dir(newCanon), 0755); err != nil {
		return false, err
	}
	if err := m.fsys.Rename(ctx, oldCanon, newCanon); err != nil {
		return false, err
	}

	m.log.Info("rename: %s -> %s", oldPath, newPath)
	return true, nil
}

// CreateDirectory creates a directory. An existing directory is a no-op
// success; a file occupying the name is ErrAlreadyExists.
func (m *Manager) CreateDirectory(ctx context.Context, path string, opts MutateOptions) (bool, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return false, err
	}

	info, err := m.fsys.Stat(ctx, canon)
	if err == nil {
		if info.IsDir {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	if !os.IsNotExist(err) {
		return false, err
	}

	if !m.confirmed("mkdir", path, "", opts.Confirm) {
		m.log.Info("mkdir of %s declined by confirmation gate", path)
		return false, nil
	}

	if m.InTransaction() {
		if err := m.tx.recordMkdir(canon); err != nil {
			return false, err
		}
	}

	if err := m.fsys.MkdirAll(ctx, canon, 0755); err != nil {
		return false, err
	}

	m.log.Info("mkdir: %s", path)
	return true, nil
}

// ListDirectory lists path, filtered by a glob pattern (empty matches
// everything) and the hidden flag. Entries are sorted by name for
// deterministic output.
func (m *Manager) ListDirectory(ctx context.Context, path, pattern string, includeHidden bool) ([]FileInfo, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return nil, err
	}

	info, err := m.fsys.Stat(ctx, canon)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if !info.IsDir {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}

	entries, err := m.fsys.ListDir(ctx, canon)
	if err != nil {
		return nil, err
	}

	result := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := filepath.Base(entry.Path)
		if !includeHidden && isHiddenName(name) {
			continue
		}
		if pattern != "" {
			matched, err := filepath.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			if !matched {
				continue
			}
		}

		abs := filepath.Join(canon, name)
		result = append(result, m.buildFileInfo(name, abs, entry))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// FileExists reports whether path exists. Non-existence is false, not an
// error, but out-of-bounds paths still fail with ErrBoundaryViolation.
func (m *Manager) FileExists(ctx context.Context, path string) (bool, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return false, err
	}
	return m.fsys.Exists(ctx, canon)
}

// GetFileInfo returns metadata for a single entry.
func (m *Manager) GetFileInfo(ctx context.Context, path string) (*FileInfo, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return nil, err
	}

	entry, err := m.fsys.Stat(ctx, canon)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	info := m.buildFileInfo(filepath.Base(canon), canon, entry)
	if info.Kind == KindFile && !info.IsBinary {
		// Extension said text; let the content decide
		if data, err := m.fsys.ReadFile(ctx, canon); err == nil {
			info.IsBinary = hasBinaryContent(data)
		}
	}
	return &info, nil
}

// IsWithinWorkspace is the pure boundary check; it never returns an
// error.
func (m *Manager) IsWithinWorkspace(path string) bool {
	return m.validator.IsWithin(path)
}

// RelativePath returns path relative to the boundary that contains it.
func (m *Manager) RelativePath(path string) (string, error) {
	return m.validator.Rel(path)
}

func (m *Manager) buildFileInfo(name, abs string, entry *fs.FileInfo) FileInfo {
	kind := KindFile
	if entry.IsDir {
		kind = KindDirectory
	}

	info := FileInfo{
		Name:         name,
		AbsolutePath: abs,
		Kind:         kind,
		ModifiedAt:   entry.ModTime,
		// Creation time is not portably available; the modification
		// time is the closest stable stand-in.
		CreatedAt: entry.ModTime,
		IsHidden:  isHiddenName(name),
	}

	if rel, err := m.validator.Rel(abs); err == nil {
		info.RelativePath = rel
	}

	if kind == KindFile {
		info.Size = entry.Size
		info.Extension = filepath.Ext(name)
		info.IsBinary = isBinaryExtension(name)
	}

	return info
}

// confirmed applies the per-call mode over the manager default and
// consults the gate when required. A nil gate denies.
func (m *Manager) confirmed(operation, path, detail string, mode ConfirmMode) bool {
	required := m.requireConfirm
	switch mode {
	case ConfirmAlways:
		required = true
	case ConfirmNever:
		required = false
	}

	if !required {
		return true
	}
	if m.confirm == nil {
		return false
	}
	return m.confirm(operation, path, detail)
}
