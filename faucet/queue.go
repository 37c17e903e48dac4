package faucet

import (
	"sync"

	"github.com/EspressoSystems/faucet/faucetdb"
	"github.com/EspressoSystems/faucet/log"

	mapset "github.com/deckarep/golang-set"
)

// request is one unit of pending work: grant more records to key, which
// has already received grantsGiven of them.
type request struct {
	key         Recipient
	grantsGiven int
}

// queueIndex is the persistent ordered map recipient -> grants_given,
// backed by an append-only log (spec §4.A). It is the authoritative
// data structure; the channel in Queue merely mirrors it.
type queueIndex struct {
	mu    sync.Mutex
	index map[Recipient]int
	log   *faucetdb.AppendLog
}

func (q *queueIndex) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

func (q *queueIndex) grants(key Recipient) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index[key]
}

// insert adds key to the index with zero grants given, unless it is
// already present. The log commit happens before the in-memory entry
// becomes visible to other callers (both happen under the same lock
// here, which gives that ordering for free).
func (q *queueIndex) insert(key Recipient) (inserted bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.insertLocked(key)
}

// insertLocked is insert's body, callable by a caller that already
// holds q.mu (so it can hold the lock across a prior check, such as
// Push's admission-bound test, without a TOCTOU gap).
func (q *queueIndex) insertLocked(key Recipient) (inserted bool, err error) {
	if _, ok := q.index[key]; ok {
		return false, nil
	}
	zero := uint64(0)
	if err := q.log.Append(faucetdb.Entry{Key: key.Bytes(), Value: &zero}); err != nil {
		log.Error("storage error adding key to queue", "key", key, "err", err)
		return false, err
	}
	q.index[key] = 0
	return true, nil
}

// grant increments the grants given to key by granted. If the total
// reaches maxGrants, the entry is deleted and needsMore is false.
func (q *queueIndex) grant(key Recipient, granted, maxGrants int) (needsMore bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := q.index[key] + granted
	if total >= maxGrants {
		if err := q.log.Append(faucetdb.Entry{Key: key.Bytes(), Value: nil}); err != nil {
			log.Error("storage error removing key from queue", "key", key, "err", err)
			return false, err
		}
		delete(q.index, key)
		return false, nil
	}
	v := uint64(total)
	if err := q.log.Append(faucetdb.Entry{Key: key.Bytes(), Value: &v}); err != nil {
		log.Error("storage error updating key in queue", "key", key, "err", err)
		return false, err
	}
	q.index[key] = total
	return true, nil
}

// Queue is the shared, asynchronous request queue: the persistent index
// (the authoritative record of who owes grants) plus an in-memory
// channel that feeds the transfer workers.
type Queue struct {
	ch     *unboundedChan
	index  *queueIndex
	maxLen int // 0 means unbounded
}

// LoadQueue opens the append log at dir and replays it into an index
// and a seeded channel, per the recovery algorithm of spec §4.A.
func LoadQueue(dir string, maxLen int) (*Queue, error) {
	al, err := faucetdb.Open(dir)
	if err != nil {
		return nil, err
	}
	entries, err := al.Entries()
	if err != nil {
		return nil, err
	}

	// latest[k] holds the most recently observed value for k, discovered
	// by scanning newest-first. queueRev accumulates, in reverse, the
	// keys whose most recent Some(0) entry has no later None; processed
	// tracks keys we've already made a decision about for the channel.
	latest := make(map[Recipient]*uint64)
	processed := mapset.NewSet()
	var queueRev []Recipient

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		key := NewRecipient(e.Key)
		if _, seen := latest[key]; !seen {
			latest[key] = e.Value
		}
		if !processed.Contains(key) {
			switch {
			case e.Value != nil && *e.Value == 0:
				queueRev = append(queueRev, key)
				processed.Add(key)
			case e.Value == nil:
				processed.Add(key)
			}
		}
	}

	index := make(map[Recipient]int)
	for k, v := range latest {
		if v != nil {
			index[k] = int(*v)
		}
	}

	ch := newUnboundedChan()
	for i := len(queueRev) - 1; i >= 0; i-- {
		key := queueRev[i]
		ch.send(request{key: key, grantsGiven: index[key]})
	}

	return &Queue{
		ch:     ch,
		maxLen: maxLen,
		index: &queueIndex{
			index: index,
			log:   al,
		},
	}, nil
}

// Push admits a new recipient into the queue. The duplicate check, the
// admission-bound check, and the insert all happen under a single
// critical section, so two concurrent Push calls racing at exactly
// maxLen-1 entries cannot both pass the bound check and overshoot
// maxLen (spec §4.A's insert is a single atomic operation), and a
// duplicate of an already-queued key is rejected as AlreadyInQueue even
// when the queue is simultaneously at capacity.
func (q *Queue) Push(key Recipient) error {
	q.index.mu.Lock()
	if _, alreadyQueued := q.index.index[key]; alreadyQueued {
		q.index.mu.Unlock()
		log.Warn("rejecting request because key is already in the queue", "key", key)
		return ErrAlreadyInQueue(key)
	}
	if q.maxLen > 0 && len(q.index.index) >= q.maxLen {
		q.index.mu.Unlock()
		log.Warn("rejecting request because queue is full", "key", key, "max_len", q.maxLen)
		return ErrQueueFull(q.maxLen)
	}
	_, err := q.index.insertLocked(key)
	q.index.mu.Unlock()

	if err != nil {
		return ErrInternal(err)
	}
	q.ch.send(request{key: key, grantsGiven: 0})
	return nil
}

// pop blocks until a request is available or the queue is shut down.
func (q *Queue) pop() (request, bool) { return q.ch.recv() }

// grant persists progress for key and reports whether it still needs
// more grants.
func (q *Queue) grant(key Recipient, granted, maxGrants int) (bool, error) {
	return q.index.grant(key, granted, maxGrants)
}

// fail re-enqueues key at its last durably-recorded progress, without
// touching the index. This is the at-least-once recovery path: if the
// index already reflects partial progress from this attempt, the retry
// resumes from there; if not, it resumes from the last successful
// grant (see DESIGN.md for the resolution of this open question).
func (q *Queue) fail(key Recipient) {
	q.ch.send(request{key: key, grantsGiven: q.index.grants(key)})
}

// Len reports the number of keys currently awaiting grants.
func (q *Queue) Len() int { return q.index.len() }

// Close shuts down the request channel; workers drain pending items
// and then exit.
func (q *Queue) Close() { q.ch.close() }

// CloseLog releases the underlying append log handle.
func (q *Queue) CloseLog() error { return q.index.log.Close() }
