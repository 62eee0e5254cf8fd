// Package bolt persists the ledger in a single bbolt file.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/store"
)

// Store is a bbolt-backed store.Store. bbolt allows one writer at a time,
// which gives Update the serialisation the ledger needs.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and makes sure all buckets exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.StorageError("bolt.Open: creating directory", err)
		}
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, domain.StorageError("bolt.Open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{store.CollectionAccounts, store.CollectionTransactions, store.CollectionReminders} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, domain.StorageError("bolt.Open", err)
	}

	return &Store{db: db}, nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, false, fn)
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, true, fn)
}

// run keeps errors returned by fn intact and wraps everything bbolt itself
// reports as a storage failure.
func (s *Store) run(ctx context.Context, write bool, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var fnErr error
	body := func(btx *bolt.Tx) error {
		fnErr = fn(&tx{btx: btx})
		return fnErr
	}

	var err error
	if write {
		err = s.db.Update(body)
	} else {
		err = s.db.View(body)
	}
	if err == nil || err == fnErr {
		return err
	}
	return domain.StorageError("bolt", err)
}

// Close implements store.Store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return domain.StorageError("bolt.Close", err)
	}
	return nil
}

type tx struct {
	btx *bolt.Tx
}

func (t *tx) bucket(name string) *bolt.Bucket {
	return t.btx.Bucket([]byte(name))
}

func (t *tx) put(bucket string, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.StorageError("marshal "+bucket, err)
	}
	if err := t.bucket(bucket).Put(key, data); err != nil {
		return domain.StorageError("put "+bucket, err)
	}
	return nil
}

func (t *tx) del(bucket string, key []byte) error {
	if err := t.bucket(bucket).Delete(key); err != nil {
		return domain.StorageError("delete "+bucket, err)
	}
	return nil
}

func (t *tx) ListAccounts() ([]domain.Account, error) {
	var out []domain.Account
	err := t.bucket(store.CollectionAccounts).ForEach(func(_, v []byte) error {
		var a domain.Account
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("ListAccounts", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *tx) GetAccount(key string) (domain.Account, bool, error) {
	data := t.bucket(store.CollectionAccounts).Get([]byte(key))
	if data == nil {
		return domain.Account{}, false, nil
	}
	var a domain.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Account{}, false, domain.StorageError("GetAccount", err)
	}
	return a, true, nil
}

func (t *tx) PutAccount(a domain.Account) error {
	return t.put(store.CollectionAccounts, []byte(a.Key()), a)
}

func (t *tx) DeleteAccount(key string) error {
	return t.del(store.CollectionAccounts, []byte(key))
}

// ListTransactions relies on big-endian Seq keys: cursor order is append order.
func (t *tx) ListTransactions() ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := t.bucket(store.CollectionTransactions).ForEach(func(_, v []byte) error {
		var tr domain.Transaction
		if err := json.Unmarshal(v, &tr); err != nil {
			return err
		}
		out = append(out, tr)
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("ListTransactions", err)
	}
	return out, nil
}

func (t *tx) AppendTransaction(tr domain.Transaction) error {
	return t.put(store.CollectionTransactions, itob(tr.Seq), tr)
}

func (t *tx) RemoveTransaction(seq int64) error {
	return t.del(store.CollectionTransactions, itob(seq))
}

func (t *tx) ClearTransactions() error {
	name := []byte(store.CollectionTransactions)
	if err := t.btx.DeleteBucket(name); err != nil {
		return domain.StorageError("ClearTransactions", err)
	}
	if _, err := t.btx.CreateBucket(name); err != nil {
		return domain.StorageError("ClearTransactions", err)
	}
	return nil
}

func (t *tx) ListReminders() ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := t.bucket(store.CollectionReminders).ForEach(func(_, v []byte) error {
		var r domain.Reminder
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("ListReminders", err)
	}
	store.SortReminders(out)
	return out, nil
}

func (t *tx) PutReminder(r domain.Reminder) error {
	return t.put(store.CollectionReminders, []byte(r.ID), r)
}

func (t *tx) DeleteReminder(id string) error {
	return t.del(store.CollectionReminders, []byte(id))
}

// itob returns an 8-byte big endian representation of v.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

var _ store.Store = (*Store)(nil)
