package safety

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cp "github.com/otiai10/copy"
	"go.uber.org/zap"
)

const timestampLayout = "20060102_150405"

// Backup snapshots the live directory and soft-deletes files
type Backup struct {
	DocsDir    string
	BackupDir  string
	DeletedDir string

	logger *zap.Logger
	now    func() time.Time
}

// NewBackup creates a new backup helper
func NewBackup(docsDir, backupDir, deletedDir string, logger *zap.Logger) *Backup {
	return &Backup{
		DocsDir:    docsDir,
		BackupDir:  backupDir,
		DeletedDir: deletedDir,
		logger:     logger.Named("backup"),
		now:        time.Now,
	}
}

// CreateBackup copies the live directory into a timestamped snapshot and returns its path
func (b *Backup) CreateBackup() (string, error) {
	dest := filepath.Join(b.BackupDir, "backup_"+b.now().UTC().Format(timestampLayout))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	if _, err := os.Stat(b.DocsDir); os.IsNotExist(err) {
		b.logger.Info("Live directory missing, created empty snapshot", zap.String("path", dest))
		return dest, nil
	}

	if err := cp.Copy(b.DocsDir, dest); err != nil {
		return "", fmt.Errorf("failed to copy live directory: %w", err)
	}

	b.logger.Info("Backup created", zap.String("path", dest))
	return dest, nil
}

// SafeDelete moves path into the deleted-items directory instead of removing it.
// A missing file returns an empty path and no error.
func (b *Backup) SafeDelete(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		b.logger.Warn("File does not exist", zap.String("path", path))
		return "", nil
	}
	if err := os.MkdirAll(b.DeletedDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create deleted dir: %w", err)
	}

	dest := filepath.Join(b.DeletedDir, b.now().UTC().Format(timestampLayout)+"_"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		if err := cp.Copy(path, dest); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", path, err)
		}
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove %s after copy: %w", path, err)
		}
	}

	b.logger.Info("File moved instead of deleted",
		zap.String("from", path),
		zap.String("to", dest))
	return dest, nil
}

// RecoveryCommands prints the manual recovery guide
func (b *Backup) RecoveryCommands(w io.Writer) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Emergency recovery commands")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  1. List soft-deleted files:")
	fmt.Fprintf(w, "     ls %s/\n", b.DeletedDir)
	fmt.Fprintln(w, "  2. Restore a soft-deleted file:")
	fmt.Fprintf(w, "     cp %s/[name] %s/[original name]\n", b.DeletedDir, b.DocsDir)
	fmt.Fprintln(w, "  3. Restore everything from the newest backup:")
	fmt.Fprintf(w, "     cp -r %s/backup_[latest timestamp]/* %s/\n", b.BackupDir, b.DocsDir)
	fmt.Fprintln(w, "  4. Restore committed files from git:")
	fmt.Fprintf(w, "     git checkout HEAD -- %s/\n", b.DocsDir)
	fmt.Fprintln(w, "  5. Restore from a specific commit:")
	fmt.Fprintln(w, "     git log --oneline")
	fmt.Fprintf(w, "     git checkout [commit] -- %s/[name]\n", b.DocsDir)
	fmt.Fprintln(w, rule)
}
