// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// ResultRepository implements storage.ResultRepository for BadgerDB.
type ResultRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	// ownsBackend is set when the repository opened the backend itself.
	ownsBackend bool
}

var _ storage.ResultRepository = (*ResultRepository)(nil)

// NewResultRepository creates a ResultRepository on an open backend.
// The caller keeps ownership of the backend.
func NewResultRepository(backend *Backend) (*ResultRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	idSeq, err := backend.GetSequence(resultIDSeq)
	if err != nil {
		return nil, err
	}

	return &ResultRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// NewRepository opens a database at path and returns a repository that
// closes it on Close.
func NewRepository(path string) (storage.ResultRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return ownRepository(backend)
}

func ownRepository(backend *Backend) (*ResultRepository, error) {
	repo, err := NewResultRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	repo.ownsBackend = true
	return repo, nil
}

// Close releases the ID sequence, and the backend when the repository owns it.
func (r *ResultRepository) Close() error {
	err := r.idSeq.Release()
	if r.ownsBackend {
		err = errors.Join(err, r.backend.Close())
	}
	return err
}

func (r *ResultRepository) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

func (r *ResultRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// SaveResults stores one or more result records.
func (r *ResultRepository) SaveResults(ctx context.Context, records ...*core.ResultRecord) ([]*core.ResultRecord, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record == nil {
				return fmt.Errorf("%w: nil record", storage.ErrInvalidQuery)
			}

			if record.Id == 0 {
				id, err := r.nextID()
				if err != nil {
					return err
				}
				record.Id = id
			} else {
				old, err := readResult(tx, makeResultKey(record.Id))
				if err != nil {
					return err
				}
				if old != nil {
					if err := deleteIndices(tx, old); err != nil {
						return err
					}
				}
			}

			if record.InsertedAt.IsZero() {
				record.InsertedAt = time.Now().UTC().Truncate(time.Microsecond)
			}

			if err := tx.Set(makeResultKey(record.Id), storage.MarshalResultRecord(record)); err != nil {
				return err
			}
			dateKey := makeResultDateKey(record.InsertedAt.UnixMicro(), record.Id)
			if err := tx.Set(dateKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
			if record.RequestID != "" {
				if err := tx.Set(makeResultRequestKey(record.RequestID), storage.MarshalID(record.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetResult retrieves a single result record by ID.
func (r *ResultRepository) GetResult(ctx context.Context, id core.ID) (*core.ResultRecord, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var result *core.ResultRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readResult(tx, makeResultKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetResultByRequestID retrieves the record stored for a request.
func (r *ResultRepository) GetResultByRequestID(ctx context.Context, requestID string) (*core.ResultRecord, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	if requestID == "" {
		return nil, fmt.Errorf("%w: empty request id", storage.ErrInvalidQuery)
	}

	var result *core.ResultRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeResultRequestKey(requestID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}

		result, err = readResult(tx, makeResultKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetResultsByDateRange retrieves records inserted in [start, end).
func (r *ResultRepository) GetResultsByDateRange(ctx context.Context, start, end time.Time) ([]*core.ResultRecord, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", storage.ErrInvalidQuery, end, start)
	}

	var results []*core.ResultRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialResultDateKey(start.UnixMicro())
		endKey := makePartialResultDateKey(end.UnixMicro())
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			if bytes.Compare(iter.Item().Key(), endKey) >= 0 {
				break
			}
			record, err := readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetRecentResults retrieves the N most recently inserted records, newest first.
func (r *ResultRepository) GetRecentResults(ctx context.Context, limit int) ([]*core.ResultRecord, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	var results []*core.ResultRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(resultDatePrefix)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible date key.
		seek := append([]byte(resultDatePrefix), bytes.Repeat([]byte{0xFF}, 16)...)
		for iter.Seek(seek); iter.Valid() && len(results) < limit; iter.Next() {
			record, err := readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteResults removes result records by their IDs.
func (r *ResultRepository) DeleteResults(ctx context.Context, ids ...core.ID) error {
	if err := r.check(ctx); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeResultKey(id)
			record, err := readResult(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
			}
			if err := deleteIndices(tx, record); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readResult reads a record, returning nil when the key is absent.
func readResult(tx *badger.Txn, key []byte) (*core.ResultRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.ResultRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalResultRecord(val)
		return unmarshalErr
	})
	return record, err
}

// readIndexed follows an index entry to its record.
func readIndexed(tx *badger.Txn, item *badger.Item) (*core.ResultRecord, error) {
	var id core.ID
	if err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	}); err != nil {
		return nil, err
	}
	return readResult(tx, makeResultKey(id))
}

// deleteIndices removes the index entries of record. The request index is
// left alone when it already points at a newer record for the same request.
func deleteIndices(tx *badger.Txn, record *core.ResultRecord) error {
	if err := tx.Delete(makeResultDateKey(record.InsertedAt.UnixMicro(), record.Id)); err != nil {
		return err
	}
	if record.RequestID == "" {
		return nil
	}

	key := makeResultRequestKey(record.RequestID)
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var indexed core.ID
	if err := item.Value(func(val []byte) error {
		var err error
		indexed, err = storage.UnmarshalID(val)
		return err
	}); err != nil {
		return err
	}
	if indexed != record.Id {
		return nil
	}
	return tx.Delete(key)
}
