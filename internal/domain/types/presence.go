package types

// PresenceStatus is the classified reachability of an identity.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// Reachable reports whether s is anything but offline.
func (s PresenceStatus) Reachable() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// PresenceRecord is the heartbeat stored at PRESENCE/{identity}. Only its
// owner writes it.
type PresenceRecord struct {
	Status       PresenceStatus `json:"status"`
	LastSeen     int64          `json:"lastSeen"`
	HeartbeatAt  int64          `json:"heartbeatAt"`
	HeartbeatSeq int64          `json:"heartbeatSeq"`
	SessionID    string         `json:"sessionId"` // source process, not a chat session
}

// PresenceSnapshot is the coordinator's current view of one contact.
type PresenceSnapshot struct {
	Contact Identity
	Status  PresenceStatus
	Record  PresenceRecord
}

// ContactState is the relationship state stored under CONTACTS/{self}.
type ContactState string

const (
	ContactPending  ContactState = "pending"
	ContactAccepted ContactState = "accepted"
	ContactBlocked  ContactState = "blocked"
)

// ContactEntry is one child of CONTACTS/{self}.
type ContactEntry struct {
	Contact Identity     `json:"-"`
	State   ContactState `json:"state"`
	Blocked bool         `json:"blocked"`
	Hidden  bool         `json:"hidden"`
}

// PresenceEligible reports whether presence may be shown for the contact.
func (c ContactEntry) PresenceEligible() bool {
	return c.State == ContactAccepted && !c.Blocked && !c.Hidden
}
