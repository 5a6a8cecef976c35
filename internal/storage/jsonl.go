package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"liquidityDesk/internal/model"
)

// JsonlStorage appends transaction records to a JSONL file. Status updates
// are appended as new lines; the latest line for a hash wins.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutTransaction appends a record as a JSON line.
func (s *JsonlStorage) PutTransaction(ctx context.Context, rec model.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Hash == "" {
		return fmt.Errorf("transaction hash is required")
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transaction record: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write transaction record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}
	return nil
}

// ReadAll returns the latest record per hash in first-seen order.
func (s *JsonlStorage) ReadAll() ([]model.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var (
		order  []string
		latest = make(map[string]model.TransactionRecord)
	)
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var rec model.TransactionRecord
			if uerr := json.Unmarshal(line, &rec); uerr != nil {
				return nil, fmt.Errorf("parse history line: %w", uerr)
			}
			if _, seen := latest[rec.Hash]; !seen {
				order = append(order, rec.Hash)
			}
			latest[rec.Hash] = rec
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read history: %w", err)
		}
	}

	out := make([]model.TransactionRecord, 0, len(order))
	for _, hash := range order {
		out = append(out, latest[hash])
	}
	return out, nil
}
