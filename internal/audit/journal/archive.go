package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// ArchiveCleanupError indicates the archive was written but the source
// journal could not be removed.
type ArchiveCleanupError struct {
	ArchivePath string
	JournalPath string
	CleanupErr  error
}

func (e *ArchiveCleanupError) Error() string {
	return fmt.Sprintf("archive created at %s but failed to remove journal %s: %v",
		e.ArchivePath, e.JournalPath, e.CleanupErr)
}

func (e *ArchiveCleanupError) Unwrap() error {
	return e.CleanupErr
}

// archiveJournal compresses a journal file with zstd and moves it into
// the archive directory.
func archiveJournal(journalPath, archiveDir, name string) error {
	src, err := os.Open(journalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	originalSize := srcInfo.Size()

	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s.journal.zst", name))
	dst, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		os.Remove(archivePath)
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(archivePath)
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("failed to close archive: %w", err)
	}

	dstInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	log.Info().
		Str("journal", name).
		Int64("original_bytes", originalSize).
		Int64("compressed_bytes", dstInfo.Size()).
		Str("archive_path", archivePath).
		Msg("Journal archived")

	if err := os.Remove(journalPath); err != nil {
		return &ArchiveCleanupError{
			ArchivePath: archivePath,
			JournalPath: journalPath,
			CleanupErr:  err,
		}
	}

	return nil
}

// CleanupArchive removes archived journals older than the retention
// period.
func CleanupArchive(archiveDir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	if _, err := os.Stat(archiveDir); os.IsNotExist(err) {
		return nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return fmt.Errorf("failed to read archive directory: %w", err)
	}

	deletedCount := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".zst" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			filePath := filepath.Join(archiveDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Warn().Err(err).Str("file", filePath).Msg("Failed to delete old archive")
				continue
			}
			deletedCount++
		}
	}

	if deletedCount > 0 {
		log.Info().
			Str("archive_dir", archiveDir).
			Int("deleted_files", deletedCount).
			Int("retention_days", retentionDays).
			Msg("Archive cleanup completed")
	}

	return nil
}

// Decompress expands a zstd-compressed journal archive so it can be
// inspected with ReadFile.
func Decompress(archivePath, outputPath string) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer dst.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	if _, err := io.Copy(dst, dec); err != nil {
		dst.Close()
		os.Remove(outputPath)
		return fmt.Errorf("failed to decompress: %w", err)
	}

	return nil
}

// IsArchive reports whether path names a compressed journal archive.
func IsArchive(path string) bool {
	return strings.HasSuffix(path, ".zst")
}
