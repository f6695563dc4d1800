package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ledger is the in-memory arena holding every player, session and round
// record. Sessions reference players and records by id rather than by
// pointer, so there are no ownership cycles and the whole graph can be
// rebuilt from a flat store or a CSV file.
type Ledger struct {
	Players  map[uuid.UUID]*Player
	Sessions map[uuid.UUID]*GameSession
	Records  map[uuid.UUID]*RoundRecord

	order []uuid.UUID // record ids in insertion order
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		Players:  make(map[uuid.UUID]*Player),
		Sessions: make(map[uuid.UUID]*GameSession),
		Records:  make(map[uuid.UUID]*RoundRecord),
	}
}

// AddPlayer creates and registers a new player.
func (l *Ledger) AddPlayer(name, avatarIcon string, avatar []byte) *Player {
	p := &Player{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(name),
		AvatarIcon: avatarIcon,
		Avatar:     avatar,
	}
	l.Players[p.ID] = p
	return p
}

// PutPlayer registers an already-built player, e.g. when rebuilding the
// arena from storage.
func (l *Ledger) PutPlayer(p *Player) {
	l.Players[p.ID] = p
}

// PlayerByName finds a player by exact, whitespace-trimmed name match.
func (l *Ledger) PlayerByName(name string) *Player {
	name = strings.TrimSpace(name)
	for _, p := range l.Players {
		if strings.TrimSpace(p.Name) == name {
			return p
		}
	}
	return nil
}

// NewSession creates a table over the given players. The dealer must be one
// of them; returns nil otherwise. Player-count validation is left to the
// caller: playable tables need exactly four, CSV import builds wider union
// sessions on purpose.
func (l *Ledger) NewSession(playerIDs []uuid.UUID, dealerID uuid.UUID, now time.Time) *GameSession {
	if len(playerIDs) == 0 {
		return nil
	}
	found := false
	for _, id := range playerIDs {
		if l.Players[id] == nil {
			return nil
		}
		if id == dealerID {
			found = true
		}
	}
	if !found {
		return nil
	}
	s := &GameSession{
		ID:              uuid.New(),
		PlayerIDs:       append([]uuid.UUID(nil), playerIDs...),
		CurrentDealerID: dealerID,
		CreatedAt:       now,
	}
	l.Sessions[s.ID] = s
	return s
}

// PutSession registers an already-built session.
func (l *Ledger) PutSession(s *GameSession) {
	l.Sessions[s.ID] = s
}

// SessionPlayers resolves a session's seated players against the arena,
// skipping ids that no longer resolve.
func (l *Ledger) SessionPlayers(s *GameSession) []*Player {
	if s == nil {
		return nil
	}
	out := make([]*Player, 0, len(s.PlayerIDs))
	for _, id := range s.PlayerIDs {
		if p := l.Players[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// AttachRecord registers a record in the arena and appends it to its
// session's ordered list. Used by the lifecycle operations, CSV import and
// storage rebuild alike.
func (l *Ledger) AttachRecord(r *RoundRecord) {
	l.Records[r.ID] = r
	l.order = append(l.order, r.ID)
	if s := l.Sessions[r.SessionID]; s != nil {
		s.RecordIDs = append(s.RecordIDs, r.ID)
	}
}

// OrderedRecords returns every record in insertion order.
func (l *Ledger) OrderedRecords() []*RoundRecord {
	out := make([]*RoundRecord, 0, len(l.order))
	for _, id := range l.order {
		if r := l.Records[id]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// SessionRecords returns a session's records in order.
func (l *Ledger) SessionRecords(s *GameSession) []*RoundRecord {
	if s == nil {
		return nil
	}
	out := make([]*RoundRecord, 0, len(s.RecordIDs))
	for _, id := range s.RecordIDs {
		if r := l.Records[id]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// RemoveAllRecords drops every round record while keeping players and
// sessions. Used by overwrite-mode CSV import.
func (l *Ledger) RemoveAllRecords() {
	l.Records = make(map[uuid.UUID]*RoundRecord)
	l.order = nil
	for _, s := range l.Sessions {
		s.RecordIDs = nil
	}
}
