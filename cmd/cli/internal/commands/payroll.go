package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/minio/crc64nvme"
	"gopkg.in/yaml.v3"
)

// PayrollBatch is the YAML/JSON batch file format for payroll runs.
type PayrollBatch struct {
	Asset    string           `yaml:"asset" json:"asset"`
	Memo     string           `yaml:"memo" json:"memo"`
	Payments []PayrollPayment `yaml:"payments" json:"payments"`
}

// PayrollPayment is one payment within a batch file.
type PayrollPayment struct {
	To     string `yaml:"to" json:"to"`
	Amount uint64 `yaml:"amount" json:"amount"`
}

type PayrollCmd struct {
	Run PayrollRunCmd `cmd:"" help:"Run a payroll batch from a file"`
}

type PayrollRunCmd struct {
	ClientFlags
	File           string `arg:"" help:"YAML/JSON batch file path"`
	Memo           string `help:"Override the batch memo"`
	IdempotencyKey string `help:"Idempotency key, derived from the file content when empty"`
}

func (p *PayrollRunCmd) Run(ctx context.Context) error {
	data, err := os.ReadFile(p.File)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}

	batch, err := parseBatchFile(p.File, data)
	if err != nil {
		return err
	}

	if p.Memo != "" {
		batch.Memo = p.Memo
	}

	recipients := make([]string, 0, len(batch.Payments))
	amounts := make([]string, 0, len(batch.Payments))
	for _, payment := range batch.Payments {
		recipients = append(recipients, payment.To)
		amounts = append(amounts, strconv.FormatUint(payment.Amount, 10))
	}

	key := p.IdempotencyKey
	if key == "" {
		// Resubmitting the same file replays the recorded response
		// instead of paying everyone twice.
		key = batchKey(data)
	}

	fmt.Printf("Running payroll of %d payments from %s\n", len(batch.Payments), p.File)

	result, err := p.client().Payroll(ctx, batch.Asset, recipients, amounts, batch.Memo, key)
	if err != nil {
		return fmt.Errorf("failed to run payroll: %w", err)
	}

	fmt.Printf("Paid %d recipients, total %s %s\n", result.Payments, result.Total, batch.Asset)
	return nil
}

func parseBatchFile(path string, data []byte) (*PayrollBatch, error) {
	var batch PayrollBatch

	// Determine file format by extension
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("failed to parse JSON batch: %w", err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("failed to parse YAML batch: %w", err)
		}
	}

	if batch.Asset == "" {
		return nil, errors.New("batch file must set asset")
	}
	if len(batch.Payments) == 0 {
		return nil, errors.New("batch file has no payments")
	}
	for i, payment := range batch.Payments {
		if payment.To == "" {
			return nil, fmt.Errorf("payment %d has no recipient", i)
		}
		if payment.Amount == 0 {
			return nil, fmt.Errorf("payment %d has zero amount", i)
		}
	}

	return &batch, nil
}

func batchKey(data []byte) string {
	h := crc64nvme.New()
	h.Write(data)
	return fmt.Sprintf("payroll-%016x", h.Sum64())
}
