// Package cli implements the one-shot command runner over a managed
// workspace.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/codefionn/werkraum/internal/config"
	"github.com/codefionn/werkraum/internal/fs"
	"github.com/codefionn/werkraum/internal/lockfile"
	"github.com/codefionn/werkraum/internal/logger"
	"github.com/codefionn/werkraum/internal/workspace"
)

// Options represent command-line adjustments applied over the loaded
// configuration.
type Options struct {
	// Root overrides the configured workspace root.
	Root string
	// AllowedPaths are added to the configured boundary set.
	AllowedPaths []string
	// AssumeYes answers every confirmation prompt with yes.
	AssumeYes bool
	// Binary switches read and write to raw byte mode.
	Binary bool
	// Pattern filters ls output by a glob on the entry name.
	Pattern string
	// All includes hidden entries in ls output.
	All bool
	// SkipContentCheck bypasses the content deny list for writes.
	SkipContentCheck bool
}

// Runner wires configuration, the caching filesystem, the workspace
// manager and the process lock into a command dispatcher.
type Runner struct {
	cfg     *config.Config
	fsys    *fs.CachedFS
	manager *workspace.Manager
	lock    *lockfile.Lockfile
	options *Options
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// New builds a Runner and acquires the workspace lock. Callers must
// Close it to release the lock and the filesystem watcher.
func New(ctx context.Context, cfg *config.Config, opts *Options) (*Runner, error) {
	if opts == nil {
		opts = &Options{}
	}

	root := cfg.Workspace.DefaultPath
	if opts.Root != "" {
		root = opts.Root
	}

	allowed := append([]string(nil), cfg.Workspace.AllowedPaths...)
	allowed = append(allowed, opts.AllowedPaths...)

	cached := fs.NewCachedFS(
		fs.NewOSFS(""),
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
		cfg.Cache.MaxEntries,
	)

	r := &Runner{
		cfg:     cfg,
		fsys:    cached,
		options: opts,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	manager, err := workspace.NewManager(ctx, workspace.Options{
		Root:                root,
		AllowedPaths:        allowed,
		RequireConfirmation: cfg.Security.RequireConfirmationForWrites,
		Confirm:             r.promptConfirm,
		DenyPatterns:        cfg.Security.DenyPatterns,
		FS:                  cached,
		Logger:              logger.Global(),
	})
	if err != nil {
		cached.Close()
		return nil, err
	}
	r.manager = manager

	lock := lockfile.New(filepath.Join(manager.Root(), ".werkraum.lock"))
	if err := lock.TryAcquire(); err != nil {
		cached.Close()
		return nil, err
	}
	r.lock = lock

	return r, nil
}

// Close releases the workspace lock and stops the filesystem watcher.
func (r *Runner) Close() error {
	var errs []error
	if r.lock != nil {
		if err := r.lock.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.fsys != nil {
		if err := r.fsys.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Manager exposes the underlying workspace manager.
func (r *Runner) Manager() *workspace.Manager {
	return r.manager
}

// promptConfirm asks the user on the terminal. Non-interactive runs
// deny unless --yes was given.
func (r *Runner) promptConfirm(operation, path, detail string) bool {
	if r.options.AssumeYes {
		return true
	}

	stdinFile, isFile := r.stdin.(*os.File)
	if !isFile || !term.IsTerminal(int(stdinFile.Fd())) {
		fmt.Fprintf(r.stderr, "refusing %s of %s without a terminal (use --yes to override)\n", operation, path)
		return false
	}

	if detail != "" {
		fmt.Fprintf(r.stderr, "%s %s (%s)? [y/N] ", operation, path, detail)
	} else {
		fmt.Fprintf(r.stderr, "%s %s? [y/N] ", operation, path)
	}

	line, err := bufio.NewReader(r.stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// Run dispatches a single command with its positional arguments.
func (r *Runner) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "read":
		return r.runRead(ctx, args)
	case "write":
		return r.runWrite(ctx, args, false)
	case "append":
		return r.runWrite(ctx, args, true)
	case "rm":
		return r.runDelete(ctx, args)
	case "mv":
		return r.runRename(ctx, args)
	case "mkdir":
		return r.runMkdir(ctx, args)
	case "ls":
		return r.runList(ctx, args)
	case "info":
		return r.runInfo(ctx, args)
	case "exists":
		return r.runExists(ctx, args)
	case "patch":
		return r.runPatch(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (r *Runner) runRead(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: read <path>")
	}

	data, err := r.manager.ReadFile(ctx, args[0], r.options.Binary)
	if err != nil {
		return err
	}
	_, err = r.stdout.Write(data)
	return err
}

// runWrite takes content from the second argument, or from stdin when
// the argument is "-" or absent.
func (r *Runner) runWrite(ctx context.Context, args []string, appendMode bool) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: write|append <path> [content|-]")
	}

	var content []byte
	if len(args) == 2 && args[1] != "-" {
		content = []byte(args[1])
	} else {
		data, err := io.ReadAll(r.stdin)
		if err != nil {
			return fmt.Errorf("failed to read content from stdin: %w", err)
		}
		content = data
	}

	ok, err := r.manager.WriteFile(ctx, args[0], content, workspace.WriteOptions{
		Append:           appendMode,
		SkipContentCheck: r.options.SkipContentCheck || r.options.Binary,
	})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.stderr, "cancelled")
		return nil
	}

	fmt.Fprintf(r.stdout, "wrote %d bytes to %s\n", len(content), args[0])
	return nil
}

func (r *Runner) runDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm <path>")
	}

	ok, err := r.manager.DeleteFile(ctx, args[0], workspace.MutateOptions{})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.stderr, "cancelled")
		return nil
	}

	fmt.Fprintf(r.stdout, "deleted %s\n", args[0])
	return nil
}

func (r *Runner) runRename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mv <old> <new>")
	}

	ok, err := r.manager.RenameFile(ctx, args[0], args[1], workspace.MutateOptions{})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.stderr, "cancelled")
		return nil
	}

	fmt.Fprintf(r.stdout, "renamed %s to %s\n", args[0], args[1])
	return nil
}

func (r *Runner) runMkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mkdir <path>")
	}

	ok, err := r.manager.CreateDirectory(ctx, args[0], workspace.MutateOptions{})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.stderr, "cancelled")
		return nil
	}

	fmt.Fprintf(r.stdout, "created %s\n", args[0])
	return nil
}

func (r *Runner) runList(ctx context.Context, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	} else if len(args) > 1 {
		return errors.New("usage: ls [path]")
	}

	entries, err := r.manager.ListDirectory(ctx, path, r.options.Pattern, r.options.All)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, entry := range entries {
		if entry.Kind == workspace.KindDirectory {
			fmt.Fprintf(r.stdout, "%-10s %8s  %s/\n", entry.Kind, "-", entry.Name)
			continue
		}
		fmt.Fprintf(r.stdout, "%-10s %8d  %s\n", entry.Kind, entry.Size, entry.Name)
	}
	return nil
}

func (r *Runner) runInfo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: info <path>")
	}

	info, err := r.manager.GetFileInfo(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(r.stdout, "name:     %s\n", info.Name)
	fmt.Fprintf(r.stdout, "path:     %s\n", info.RelativePath)
	fmt.Fprintf(r.stdout, "kind:     %s\n", info.Kind)
	if info.Kind == workspace.KindFile {
		fmt.Fprintf(r.stdout, "size:     %d\n", info.Size)
		fmt.Fprintf(r.stdout, "binary:   %v\n", info.IsBinary)
	}
	fmt.Fprintf(r.stdout, "modified: %s\n", info.ModifiedAt.Format(time.RFC3339))
	fmt.Fprintf(r.stdout, "hidden:   %v\n", info.IsHidden)
	return nil
}

func (r *Runner) runExists(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: exists <path>")
	}

	exists, err := r.manager.FileExists(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(r.stdout, exists)
	return nil
}

// runPatch applies a unified diff read from stdin.
func (r *Runner) runPatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: patch <path> < diff")
	}

	diffText, err := io.ReadAll(r.stdin)
	if err != nil {
		return fmt.Errorf("failed to read diff from stdin: %w", err)
	}

	ok, err := r.manager.ApplyDiff(ctx, args[0], string(diffText), workspace.MutateOptions{})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.stderr, "cancelled")
		return nil
	}

	fmt.Fprintf(r.stdout, "patched %s\n", args[0])
	return nil
}
