package presence

import (
	"time"

	"pairchat/internal/domain"
)

const (
	// DefaultHeartbeatInterval is how often a Publisher rewrites its record.
	DefaultHeartbeatInterval = 15 * time.Second
	// DefaultHeartbeatTimeout is how old a heartbeat may be and still count.
	DefaultHeartbeatTimeout = 45 * time.Second
)

// Classify returns the status rec stands for at now. A record is trusted only
// while its heartbeat is at most timeout old; anything else is offline.
func Classify(rec domain.PresenceRecord, now time.Time, timeout time.Duration) domain.PresenceStatus {
	if !rec.Status.Reachable() || rec.HeartbeatAt <= 0 {
		return domain.StatusOffline
	}
	age := now.Sub(time.UnixMilli(rec.HeartbeatAt))
	if age > timeout {
		return domain.StatusOffline
	}
	return rec.Status
}

// ExpiresAt is the first instant at which Classify no longer trusts rec.
func ExpiresAt(rec domain.PresenceRecord, timeout time.Duration) time.Time {
	return time.UnixMilli(rec.HeartbeatAt).Add(timeout + time.Millisecond)
}

// SeqGate rejects presence records that are not newer than what was already
// accepted. The zero value is ready to use.
type SeqGate struct {
	seqs   map[string]int64
	lastAt int64
}

// Accept reports whether rec is newer than every accepted record and, if so,
// remembers it. Within one source process heartbeatSeq decides. Across
// sources, which restart their counters, a record older than the last
// accepted heartbeat is rejected.
func (g *SeqGate) Accept(rec domain.PresenceRecord) bool {
	if g.seqs == nil {
		g.seqs = make(map[string]int64)
	}
	if last, ok := g.seqs[rec.SessionID]; ok {
		if rec.HeartbeatSeq <= last {
			return false
		}
	} else if rec.HeartbeatAt < g.lastAt {
		return false
	}
	g.seqs[rec.SessionID] = rec.HeartbeatSeq
	if rec.HeartbeatAt > g.lastAt {
		g.lastAt = rec.HeartbeatAt
	}
	return true
}

// Reset forgets everything accepted so far.
func (g *SeqGate) Reset() {
	g.seqs = nil
	g.lastAt = 0
}
