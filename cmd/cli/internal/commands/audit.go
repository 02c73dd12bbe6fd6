package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tallystack/treasury/internal/audit/journal"
)

type AuditCmd struct {
	Dump AuditDumpCmd `cmd:"" help:"Print the events in a journal segment as JSON lines"`
}

type AuditDumpCmd struct {
	File string `arg:"" help:"Journal segment or archive path"`
}

func (a *AuditDumpCmd) Run(ctx context.Context) error {
	path := a.File

	if journal.IsArchive(path) {
		tmp, err := os.CreateTemp("", "journal-*.log")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck

		if err := tmp.Close(); err != nil {
			return err
		}

		if err := journal.Decompress(path, tmp.Name()); err != nil {
			return fmt.Errorf("failed to decompress archive: %w", err)
		}
		path = tmp.Name()
	}

	events, err := journal.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}

	return nil
}
