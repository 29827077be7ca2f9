package analyzer

import (
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// SourceID is the content identity of an image: 16 hex chars of xxHash64
func SourceID(data []byte) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], xxhash.Sum64(data))
	return hex.EncodeToString(b[:])
}

// Ticket identifies one started analysis
type Ticket struct {
	Session    string
	SourceID   string
	Generation uint64
}

// Tracker remembers the latest analysis begun per session so that results of
// superseded analyses can be discarded. The empty session is never stale.
type Tracker struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]uint64)}
}

// Begin marks sourceID as the current image of session
func (t *Tracker) Begin(session, sourceID string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	if session != "" {
		t.latest[session] = t.next
	}
	return Ticket{Session: session, SourceID: sourceID, Generation: t.next}
}

// Accept reports whether the analysis behind ticket is still current
func (t *Tracker) Accept(ticket Ticket) bool {
	if ticket.Session == "" {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[ticket.Session] == ticket.Generation
}

// Finish forgets session once its current analysis is done
func (t *Tracker) Finish(ticket Ticket) {
	if ticket.Session == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest[ticket.Session] == ticket.Generation {
		delete(t.latest, ticket.Session)
	}
}
