package types

// Graph field names of presence and contact records.
const (
	fieldStatus       = "status"
	fieldLastSeen     = "lastSeen"
	fieldHeartbeatAt  = "heartbeatAt"
	fieldHeartbeatSeq = "heartbeatSeq"
	fieldSessionID    = "sessionId"

	fieldState   = "state"
	fieldBlocked = "blocked"
	fieldHidden  = "hidden"
)

// Record returns the graph form of p.
func (p PresenceRecord) Record() Record {
	return Record{
		fieldStatus:       string(p.Status),
		fieldLastSeen:     p.LastSeen,
		fieldHeartbeatAt:  p.HeartbeatAt,
		fieldHeartbeatSeq: p.HeartbeatSeq,
		fieldSessionID:    p.SessionID,
	}
}

// PresenceRecordFrom parses a graph value. Records without a status are
// rejected; missing numbers read as zero.
func PresenceRecordFrom(v Value) (PresenceRecord, bool) {
	rec, ok := AsRecord(v)
	if !ok {
		return PresenceRecord{}, false
	}
	status := PresenceStatus(rec.String(fieldStatus))
	if status == "" {
		return PresenceRecord{}, false
	}
	p := PresenceRecord{Status: status, SessionID: rec.String(fieldSessionID)}
	p.LastSeen, _ = rec.Int64(fieldLastSeen)
	p.HeartbeatAt, _ = rec.Int64(fieldHeartbeatAt)
	p.HeartbeatSeq, _ = rec.Int64(fieldHeartbeatSeq)
	return p, true
}

// Record returns the graph form of c. Contact is the child key and is not
// stored.
func (c ContactEntry) Record() Record {
	return Record{
		fieldState:   string(c.State),
		fieldBlocked: c.Blocked,
		fieldHidden:  c.Hidden,
	}
}

// ContactEntryFrom parses the child contact of CONTACTS/{self}. A nil or
// non-record value reports false: the entry is gone.
func ContactEntryFrom(contact Identity, v Value) (ContactEntry, bool) {
	rec, ok := AsRecord(v)
	if !ok {
		return ContactEntry{}, false
	}
	e := ContactEntry{
		Contact: contact,
		State:   ContactState(rec.String(fieldState)),
		Blocked: rec.Bool(fieldBlocked),
		Hidden:  rec.Bool(fieldHidden),
	}
	if e.State == ContactBlocked {
		e.Blocked = true
	}
	return e, true
}
