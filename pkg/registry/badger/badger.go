// Package badger implements registry.Registry on BadgerDB.
//
// With a database path the registry survives restarts, so identifiers
// handed to a client remain valid across a host relaunch. With InMemory
// set nothing touches the disk.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/registry"
)

// Config configures the Badger registry.
type Config struct {
	// DBPath is the database directory. Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the database in memory only.
	InMemory bool `mapstructure:"in_memory"`
}

// Registry is a registry.Registry stored in BadgerDB.
type Registry struct {
	db *badgerdb.DB
}

// New opens (or creates) the registry database.
func New(ctx context.Context, cfg Config) (*Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger registry: db_path is required unless in_memory is set")
		}
		opts = badgerdb.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING).WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	r := &Registry{db: db}
	if err := r.stampSession(); err != nil {
		_ = db.Close()
		return nil, err
	}

	count, err := r.Count(ctx)
	if err == nil && count > 0 {
		logger.Info("Badger registry reopened with %d existing entries", count)
	}

	return r, nil
}

func (r *Registry) stampSession() error {
	return r.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySession))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("failed to read session marker: %w", err)
		}
		return txn.Set([]byte(keySession), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// Register stores the resource under a new identifier.
func (r *Registry) Register(ctx context.Context, res registry.Resource) (registry.EntryID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if res.Target == "" || res.ScopeRoot == "" {
		return "", fmt.Errorf("%w: target and scope root are required", registry.ErrInvalidResource)
	}

	var id registry.EntryID
	err := r.db.Update(func(txn *badgerdb.Txn) error {
		// ===== Step 1: Pick an identifier not already in use =====
		for {
			id = registry.NewEntryID()
			_, err := txn.Get(keyEntry(id))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to check identifier: %w", err)
			}
		}

		// ===== Step 2: Persist the resource =====
		res.ID = id
		data, err := encodeResource(res)
		if err != nil {
			return err
		}
		return txn.Set(keyEntry(id), data)
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrDBClosed) {
			return "", registry.ErrClosed
		}
		return "", fmt.Errorf("failed to register resource: %w", err)
	}

	return id, nil
}

// Get loads the resource registered under id.
func (r *Registry) Get(ctx context.Context, id registry.EntryID) (registry.Resource, error) {
	if err := ctx.Err(); err != nil {
		return registry.Resource{}, err
	}

	var res registry.Resource
	err := r.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return registry.ErrUnknownEntry
		}
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeResource(val)
			if err != nil {
				return err
			}
			res = decoded
			return nil
		})
	})
	if errors.Is(err, badgerdb.ErrDBClosed) {
		return registry.Resource{}, registry.ErrClosed
	}
	return res, err
}

// Count scans the entry prefix.
func (r *Registry) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyEntryPrefix()

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Close flushes and closes the database.
func (r *Registry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func encodeResource(res registry.Resource) ([]byte, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return data, nil
}

func decodeResource(data []byte) (registry.Resource, error) {
	var res registry.Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return registry.Resource{}, fmt.Errorf("failed to decode resource: %w", err)
	}
	return res, nil
}
