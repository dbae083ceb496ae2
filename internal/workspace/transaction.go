package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/codefionn/werkraum/internal/fs"
	"github.com/codefionn/werkraum/internal/logger"
)

type txStatus int

const (
	txOpen txStatus = iota
	txCommitted
	txRolledBack
)

type opKind string

const (
	opWrite  opKind = "write"
	opDelete opKind = "delete"
	opRename opKind = "rename"
	opMkdir  opKind = "mkdir"
)

// operationRecord is one entry in the transaction log. For write and
// delete operations the pre-image lives in the backup arena; a rename
// keeps the source name; a mkdir records only that the directory did not
// exist.
type operationRecord struct {
	seq         int
	kind        opKind
	path        string // canonical target path
	backupFile  string // arena file holding the pre-image, empty if none
	existed     bool   // whether the target existed before the operation
	renamedFrom string // rename only: original source path
	digest      uint64 // xxhash of the pre-image, guards against arena corruption
}

// Transaction is an ordered log of backup records over a temporary
// arena. Backups are acquired at record time and released exactly once,
// on commit or rollback.
type Transaction struct {
	id       string
	arenaDir string
	records  []operationRecord
	status   txStatus
	fsys     fs.FileSystem
	log      *logger.Logger
}

func beginTransaction(fsys fs.FileSystem, log *logger.Logger) (*Transaction, error) {
	arena, err := os.MkdirTemp("", "werkraum-txn-")
	if err != nil {
		return nil, fmt.Errorf("failed to create backup arena: %w", err)
	}

	tx := &Transaction{
		id:       uuid.NewString(),
		arenaDir: arena,
		status:   txOpen,
		fsys:     fsys,
		log:      log.WithPrefix("txn"),
	}
	tx.log.Debug("began transaction %s (arena %s)", tx.id, arena)
	return tx, nil
}

// ID returns the transaction identifier.
func (tx *Transaction) ID() string {
	return tx.id
}

func (tx *Transaction) open() bool {
	return tx.status == txOpen
}

// snapshot copies the current bytes of path into the arena. Returns the
// arena file name, whether the target existed, and the pre-image digest.
func (tx *Transaction) snapshot(ctx context.Context, path string) (string, bool, uint64, error) {
	exists, err := tx.fsys.Exists(ctx, path)
	if err != nil {
		return "", false, 0, err
	}
	if !exists {
		return "", false, 0, nil
	}

	data, err := tx.fsys.ReadFile(ctx, path)
	if err != nil {
		return "", false, 0, fmt.Errorf("failed to back up %s: %w", path, err)
	}

	backupFile := filepath.Join(tx.arenaDir, fmt.Sprintf("%06d.bak", len(tx.records)))
	if err := os.WriteFile(backupFile, data, 0600); err != nil {
		return "", false, 0, fmt.Errorf("failed to write backup for %s: %w", path, err)
	}

	return backupFile, true, xxhash.Sum64(data), nil
}

// recordWrite snapshots path before an overwrite or append. A target
// that does not exist yet is recorded with the did-not-exist marker.
func (tx *Transaction) recordWrite(ctx context.Context, path string) error {
	if !tx.open() {
		return fmt.Errorf("%w: transaction is closed", ErrTransactionState)
	}

	backupFile, existed, digest, err := tx.snapshot(ctx, path)
	if err != nil {
		return err
	}

	tx.records = append(tx.records, operationRecord{
		seq:        len(tx.records),
		kind:       opWrite,
		path:       path,
		backupFile: backupFile,
		existed:    existed,
		digest:     digest,
	})
	return nil
}

// recordDelete snapshots path before its removal.
func (tx *Transaction) recordDelete(ctx context.Context, path string) error {
	if !tx.open() {
		return fmt.Errorf("%w: transaction is closed", ErrTransactionState)
	}

	backupFile, existed, digest, err := tx.snapshot(ctx, path)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%w: cannot back up missing file %s", ErrTransactionState, path)
	}

	tx.records = append(tx.records, operationRecord{
		seq:        len(tx.records),
		kind:       opDelete,
		path:       path,
		backupFile: backupFile,
		existed:    true,
		digest:     digest,
	})
	return nil
}

// recordRename remembers the source name so the rename can be undone.
func (tx *Transaction) recordRename(from, to string) error {
	if !tx.open() {
		return fmt.Errorf("%w: transaction is closed", ErrTransactionState)
	}

	tx.records = append(tx.records, operationRecord{
		seq:         len(tx.records),
		kind:        opRename,
		path:        to,
		renamedFrom: from,
		existed:     true,
	})
	return nil
}

// recordMkdir records a directory creation (the target did not exist).
func (tx *Transaction) recordMkdir(path string) error {
	if !tx.open() {
		return fmt.Errorf("%w: transaction is closed", ErrTransactionState)
	}

	tx.records = append(tx.records, operationRecord{
		seq:  len(tx.records),
		kind: opMkdir,
		path: path,
	})
	return nil
}

// commit discards all backups and closes the transaction. Nothing is
// replayed afterwards.
func (tx *Transaction) commit() error {
	if !tx.open() {
		return fmt.Errorf("%w: transaction is not open", ErrTransactionState)
	}

	tx.status = txCommitted
	tx.log.Info("committed transaction %s (%d operations)", tx.id, len(tx.records))
	return tx.releaseArena()
}

// rollback replays records newest-first, restoring pre-images. A missing
// or digest-mismatching backup aborts the whole rollback; the arena is
// released either way.
func (tx *Transaction) rollback(ctx context.Context) error {
	if !tx.open() {
		return fmt.Errorf("%w: transaction is not open", ErrTransactionState)
	}

	tx.status = txRolledBack
	defer tx.releaseArena()

	for i := len(tx.records) - 1; i >= 0; i-- {
		if err := tx.replay(ctx, tx.records[i]); err != nil {
			tx.log.Error("rollback of transaction %s failed at record %d: %v", tx.id, tx.records[i].seq, err)
			return err
		}
	}

	tx.log.Info("rolled back transaction %s (%d operations)", tx.id, len(tx.records))
	return nil
}

func (tx *Transaction) replay(ctx context.Context, rec operationRecord) error {
	switch rec.kind {
	case opWrite:
		if !rec.existed {
			// Creation: undo by deleting, tolerating an already-gone file
			exists, err := tx.fsys.Exists(ctx, rec.path)
			if err != nil {
				return err
			}
			if exists {
				return tx.fsys.Delete(ctx, rec.path)
			}
			return nil
		}
		data, err := tx.readBackup(rec)
		if err != nil {
			return err
		}
		return tx.fsys.WriteFile(ctx, rec.path, data)

	case opDelete:
		data, err := tx.readBackup(rec)
		if err != nil {
			return err
		}
		return tx.fsys.WriteFile(ctx, rec.path, data)

	case opRename:
		return tx.fsys.Rename(ctx, rec.path, rec.renamedFrom)

	case opMkdir:
		exists, err := tx.fsys.Exists(ctx, rec.path)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := tx.fsys.RemoveDir(ctx, rec.path); err != nil {
			// A directory that gained entries from outside the
			// transaction stays in place
			tx.log.Warn("leaving non-empty directory %s during rollback: %v", rec.path, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrTransactionState, rec.kind)
	}
}

// readBackup loads a pre-image and verifies its digest. External
// modification of the arena is unrecoverable.
func (tx *Transaction) readBackup(rec operationRecord) ([]byte, error) {
	data, err := os.ReadFile(rec.backupFile)
	if err != nil {
		return nil, fmt.Errorf("%w: backup for %s unreadable: %v", ErrTransactionState, rec.path, err)
	}
	if xxhash.Sum64(data) != rec.digest {
		return nil, fmt.Errorf("%w: backup for %s was modified", ErrTransactionState, rec.path)
	}
	return data, nil
}

func (tx *Transaction) releaseArena() error {
	if tx.arenaDir == "" {
		return nil
	}
	dir := tx.arenaDir
	tx.arenaDir = ""
	tx.records = nil
	if err := os.RemoveAll(dir); err != nil {
		tx.log.Warn("failed to remove backup arena %s: %v", dir, err)
		return err
	}
	return nil
}
