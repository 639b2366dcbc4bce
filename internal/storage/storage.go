// Package storage defines the blob storage port. Keys are hierarchical
// strings ("raw/world_bank_gdp/..."); implementations map them to a local
// directory tree or an S3 bucket. Raw-layer keys are write-once; typed and
// curated layers overwrite their partition key on every stage run.
package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is the blob storage backend interface.
type Store interface {
	// Write persists bytes at the given key and returns the fully qualified
	// location (local path or s3:// URL) for tracing.
	Write(ctx context.Context, key string, data []byte) (string, error)

	// Read returns the bytes stored at the key, or an error wrapping
	// ErrNotFound when the key is absent.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns all logical keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// WriteTable persists rows as JSON Lines at the given key.
func WriteTable[T any](ctx context.Context, s Store, key string, rows []T) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return "", fmt.Errorf("encoding row %d for %s: %w", i, key, err)
		}
	}
	return s.Write(ctx, key, buf.Bytes())
}

// ReadTable loads JSON Lines rows previously written at the given key.
func ReadTable[T any](ctx context.Context, s Store, key string) ([]T, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	var rows []T
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("decoding row %d of %s: %w", len(rows), key, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", key, err)
	}
	return rows, nil
}
