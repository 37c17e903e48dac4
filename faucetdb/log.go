// Package faucetdb implements the durable append-only log behind the
// faucet's request queue index. It is a thin, purpose-built analog of
// the atomic-store append logs used by wallet implementations in this
// family: every commit is a single key/value pair written to a LevelDB
// instance (github.com/syndtr/goleveldb), keyed by a monotonically
// increasing sequence number so that iteration order equals append
// order.
package faucetdb

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Entry is one record of the append log: an upsert (Value != nil) or a
// delete (Value == nil) of Key's counter.
type Entry struct {
	Key   []byte
	Value *uint64
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, 0, 9+len(e.Key))
	if e.Value != nil {
		buf = append(buf, 1)
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], *e.Value)
		buf = append(buf, v[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, e.Key...)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 1 {
		return Entry{}, fmt.Errorf("faucetdb: truncated log entry")
	}
	flag := b[0]
	rest := b[1:]
	switch flag {
	case 0:
		return Entry{Key: append([]byte(nil), rest...)}, nil
	case 1:
		if len(rest) < 8 {
			return Entry{}, fmt.Errorf("faucetdb: truncated upsert entry")
		}
		v := binary.BigEndian.Uint64(rest[:8])
		return Entry{Key: append([]byte(nil), rest[8:]...), Value: &v}, nil
	default:
		return Entry{}, fmt.Errorf("faucetdb: unknown entry flag %d", flag)
	}
}

// AppendLog is a durable, ordered sequence of Entry records.
type AppendLog struct {
	db   *leveldb.DB
	next uint64
}

const seqPrefixLen = 8

func seqKey(n uint64) []byte {
	var b [seqPrefixLen]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// Open opens (creating if necessary) the append log rooted at dir.
func Open(dir string) (*AppendLog, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("faucetdb: open %s: %w", dir, err)
	}
	al := &AppendLog{db: db}
	iter := db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		al.next++
	}
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, fmt.Errorf("faucetdb: scan %s: %w", dir, err)
	}
	return al, nil
}

// Close releases the underlying database handle.
func (l *AppendLog) Close() error { return l.db.Close() }

// Append durably commits e as the next entry in the log. The write is
// synced before Append returns, matching the append-log contract of
// §4.A: a commit must be durable before any in-memory effect of it is
// observed by other goroutines.
func (l *AppendLog) Append(e Entry) error {
	key := seqKey(l.next)
	if err := l.db.Put(key, encodeEntry(e), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("faucetdb: append: %w", err)
	}
	l.next++
	return nil
}

// Entries returns every committed entry, in append order.
func (l *AppendLog) Entries() ([]Entry, error) {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	var out []Entry
	for iter.Next() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("faucetdb: iterate: %w", err)
	}
	return out, nil
}
