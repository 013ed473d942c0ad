package ws

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/splitlease/proposals/internal/models"
)

const (
	replayDepth = 64
	replayTTL   = time.Hour
)

type replayEntry struct {
	revision int64
	frame    []byte
	at       time.Time
}

// ReplayLog keeps the latest event frames of each proposal in revision order
// so a reconnecting subscriber can catch up without reloading.
type ReplayLog struct {
	mu         sync.Mutex
	byProposal map[string][]replayEntry
	depth      int
	ttl        time.Duration
	now        func() time.Time
}

// NewReplayLog keeps up to depth frames per proposal for at most ttl.
func NewReplayLog(depth int, ttl time.Duration) *ReplayLog {
	return &ReplayLog{
		byProposal: make(map[string][]replayEntry),
		depth:      depth,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Add files frame under evt's proposal and revision. Replicas publish after
// their own commits, so events can arrive out of order; they are inserted in
// place. A revision already held is a duplicate delivery and is rejected.
func (l *ReplayLog) Add(evt models.Event, frame []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.byProposal[evt.ProposalID]

	i := sort.Search(len(entries), func(i int) bool { return entries[i].revision >= evt.Revision })
	if i < len(entries) && entries[i].revision == evt.Revision {
		return false
	}

	entries = slices.Insert(entries, i, replayEntry{revision: evt.Revision, frame: frame, at: l.now()})
	if len(entries) > l.depth {
		entries = entries[len(entries)-l.depth:]
	}

	l.byProposal[evt.ProposalID] = entries

	return true
}

// Since returns the frames committed after revision. ok is false when the
// log no longer holds revision+1, in which case the subscriber has to reload
// the proposal. A revision of zero asks for live events only.
func (l *ReplayLog) Since(proposalID string, revision int64) (frames [][]byte, ok bool) {
	if revision <= 0 {
		return nil, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.dropExpired(proposalID)
	if len(entries) == 0 {
		return nil, true
	}

	if entries[0].revision > revision+1 {
		return nil, false
	}

	i := sort.Search(len(entries), func(i int) bool { return entries[i].revision > revision })
	for _, e := range entries[i:] {
		frames = append(frames, e.frame)
	}

	return frames, true
}

// Prune drops expired frames of every proposal.
func (l *ReplayLog) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.byProposal {
		l.dropExpired(id)
	}
}

// dropExpired trims proposalID's expired prefix. Caller holds l.mu.
func (l *ReplayLog) dropExpired(proposalID string) []replayEntry {
	entries := l.byProposal[proposalID]
	cutoff := l.now().Add(-l.ttl)

	n := 0
	for n < len(entries) && entries[n].at.Before(cutoff) {
		n++
	}

	entries = entries[n:]
	if len(entries) == 0 {
		delete(l.byProposal, proposalID)
		return nil
	}

	l.byProposal[proposalID] = entries

	return entries
}
