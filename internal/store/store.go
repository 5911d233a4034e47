// Package store persists the small amounts of state that must survive
// restarts: the acquisition coordinator's info-hash set and the specs of
// in-flight transfers.
package store

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"
)

const (
	settingPrefix  = "/setting/"
	transferPrefix = "/transfer/"
)

// TransferSpec is everything needed to re-add a transfer to the swarm engine
// after a restart. Exactly one of TorrentURL and MagnetURI is set.
type TransferSpec struct {
	TorrentURL string `json:"torrent_url,omitempty"`
	MagnetURI  string `json:"magnet_uri,omitempty"`
	Dir        string `json:"dir"`
	Name       string `json:"name,omitempty"`
}

// Store is a badger-backed settings and transfer-spec store.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog for Badger's logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error(f, "args", v) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn(f, "args", v) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.log.Info(f, "args", v) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.log.Debug(f, "args", v) }

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	log := slog.With("component", "store")

	opts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{log: log}).
		WithValueLogFileSize(1<<26 - 1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	err = db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// ReadStringList reads a named list setting. A missing key yields an empty
// list, not an error.
func (s *Store) ReadStringList(key string) ([]string, error) {
	var out []string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(settingPrefix + key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// WriteStringList overwrites a named list setting wholesale.
func (s *Store) WriteStringList(key string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(settingPrefix+key), data)
	})
	if err != nil {
		return err
	}

	return s.db.Sync()
}

// AddTransfer saves the spec of a started transfer keyed by its info hash.
func (s *Store) AddTransfer(infoHash string, spec TransferSpec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(transferPrefix+infoHash), data)
	})
	if err != nil {
		return err
	}

	return s.db.Sync()
}

// RemoveTransfer forgets a saved transfer spec. Removing an unknown hash is
// not an error.
func (s *Store) RemoveTransfer(infoHash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(transferPrefix + infoHash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// ListTransfers returns all saved transfer specs keyed by info hash.
func (s *Store) ListTransfers() (map[string]TransferSpec, error) {
	out := make(map[string]TransferSpec)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(transferPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			hash := strings.TrimPrefix(string(it.Item().Key()), transferPrefix)
			err := it.Item().Value(func(v []byte) error {
				var spec TransferSpec
				if err := json.Unmarshal(v, &spec); err != nil {
					return err
				}
				out[hash] = spec
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Close shuts down the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
