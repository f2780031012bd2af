package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hivemachines/account-provisioner/interfaces"
)

// FileLedger keeps the used-address set in a single JSON file: a flat array
// of address strings in reservation order. The whole file is read once at
// startup and rewritten on every reservation, which is fine for the low
// request volume this gateway sees.
type FileLedger struct {
	path string
	log  *slog.Logger

	mu        sync.Mutex
	addresses []string
	index     map[string]struct{}
}

// NewFileLedger opens the ledger file at path, creating parent directories
// as needed. A missing file is an empty set, not an error.
func NewFileLedger(path string, log *slog.Logger) (*FileLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	l := &FileLedger{
		path:  path,
		log:   log,
		index: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("Address ledger file not found, starting with empty set",
			slog.String("path", path))
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	if err := json.Unmarshal(data, &l.addresses); err != nil {
		return nil, fmt.Errorf("malformed ledger file %s: %w", path, err)
	}
	for _, addr := range l.addresses {
		l.index[addr] = struct{}{}
	}

	log.Info("Loaded address ledger",
		slog.String("path", path),
		slog.Int("addresses", len(l.addresses)))
	return l, nil
}

// Reserve implements interfaces.AddressLedger. The new set is written to a
// temporary file, fsynced and renamed into place before Reserve returns, so
// a granted reservation survives a crash.
func (l *FileLedger) Reserve(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	addr := address.String()
	if _, used := l.index[addr]; used {
		return false, nil
	}

	updated := append(l.addresses, addr)
	if err := l.write(updated); err != nil {
		return false, fmt.Errorf("failed to persist reservation: %w", err)
	}

	l.addresses = updated
	l.index[addr] = struct{}{}
	return true, nil
}

// Contains implements interfaces.AddressLedger.
func (l *FileLedger) Contains(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, used := l.index[address.String()]
	return used, nil
}

// Close implements interfaces.AddressLedger. The file needs no teardown.
func (l *FileLedger) Close() error {
	return nil
}

// write rewrites the full ledger file atomically. Callers hold l.mu.
func (l *FileLedger) write(addresses []string) error {
	data, err := json.MarshalIndent(addresses, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.path)
}
