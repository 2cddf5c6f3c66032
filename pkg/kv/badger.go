package kv

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
)

// Badger is a Store backed by an embedded badger database.
type Badger struct {
	db  *badger.DB
	dir string
}

// OpenBadger opens or creates a badger database in dir.
func OpenBadger(dir string, logger *zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logging.Component(logger, "badger")}).
		WithLoggingLevel(badger.WARNING).
		WithMemTableSize(8 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WrapIO("open", dir, err)
	}
	return &Badger{db: db, dir: dir}, nil
}

// Save sets key to value in a single transaction.
func (b *Badger) Save(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return errors.WrapIO("write", b.dir+"#"+key, err)
}

// Load reads key.
func (b *Badger) Load(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapIO("read", b.dir+"#"+key, err)
	}
	return value, true, nil
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return errors.WrapIO("close", b.dir, b.db.Close())
}

// badgerLogger routes badger's log output through zerolog.
type badgerLogger struct {
	logger *zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msg(trim(format, args))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Msg(trim(format, args))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Info().Msg(trim(format, args))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msg(trim(format, args))
}

func trim(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
