package catalog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

var ErrKeyNotFound = errors.New("catalog: key not found")

// Storage is the key-value contract table metadata lives behind.
type Storage interface {
	Set(key, value []byte) error
	Get(key []byte, value func([]byte) error) error
	GC() error
	Close() error
}

type KV struct {
	db *badger.DB
}

var _ Storage = (*KV)(nil)

func NewKV(path string) (*KV, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithLogger(&badgerLogger{
			log: slog.Default().With(
				slog.String("component", "catalog-store"),
			),
		}))
	if err != nil {
		return nil, err
	}
	return &KV{db: db}, nil
}

func (kv *KV) GC() error {
	return kv.db.RunValueLogGC(0.5)
}

func (kv *KV) Close() error {
	return kv.db.Close()
}

func (kv *KV) Set(key, value []byte) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (kv *KV) Get(key []byte, value func([]byte) error) error {
	return kv.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		return it.Value(value)
	})
}

type badgerLogger struct {
	log *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (b *badgerLogger) Errorf(msg string, args ...interface{}) {
	b.log.Error(fmt.Sprintf(msg, args...))
}
func (b *badgerLogger) Warningf(msg string, args ...interface{}) {
	b.log.Warn(fmt.Sprintf(msg, args...))
}
func (b *badgerLogger) Infof(msg string, args ...interface{}) {
	b.log.Info(fmt.Sprintf(msg, args...))
}
func (b *badgerLogger) Debugf(msg string, args ...interface{}) {
	b.log.Debug(fmt.Sprintf(msg, args...))
}

// Mem is an in-memory Storage for tests.
type Mem struct {
	m map[string][]byte
}

var _ Storage = (*Mem)(nil)

func NewMem() *Mem { return &Mem{m: make(map[string][]byte)} }

func (m *Mem) Set(key, value []byte) error {
	m.m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *Mem) Get(key []byte, value func([]byte) error) error {
	v, ok := m.m[string(key)]
	if !ok {
		return ErrKeyNotFound
	}
	return value(v)
}

func (m *Mem) GC() error    { return nil }
func (m *Mem) Close() error { return nil }
