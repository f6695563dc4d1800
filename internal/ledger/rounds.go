package ledger

import (
	"time"

	"github.com/google/uuid"
)

// tablePlayers returns the session's players when they resolve to exactly
// four, else nil.
func (l *Ledger) tablePlayers(s *GameSession) []*Player {
	if s == nil {
		return nil
	}
	players := l.SessionPlayers(s)
	if len(players) != 4 {
		return nil
	}
	return players
}

// CreateRound validates the round inputs against the session, builds a
// record capturing the session's current dealer, and appends it. The round
// number is caller-supplied (normally the day-scoped counter from the
// aggregation side). Returns nil with no side effects on invalid input: the
// session must seat exactly four players, the winner must be one of them,
// and a named loser must be one of the other three.
func (l *Ledger) CreateRound(s *GameSession, roundNumber int, winnerID uuid.UUID, loserID *uuid.UUID, isSelfDrawn bool, kongs []KongDetail, now time.Time) *RoundRecord {
	if l.tablePlayers(s) == nil {
		return nil
	}
	if !s.HasPlayer(winnerID) {
		return nil
	}
	if !isSelfDrawn && loserID != nil {
		if *loserID == winnerID || !s.HasPlayer(*loserID) {
			return nil
		}
	}
	r := &RoundRecord{
		ID:          uuid.New(),
		Timestamp:   now,
		RoundNumber: roundNumber,
		WinnerID:    winnerID,
		LoserID:     copyLoser(loserID),
		IsSelfDrawn: isSelfDrawn,
		Kongs:       clampKongs(kongs),
		DealerID:    s.CurrentDealerID,
		SessionID:   s.ID,
	}
	l.AttachRecord(r)
	return r
}

// CreateAdjustment writes a manual rebalance as a single adjustment record
// over a synthetic session of the given players. The first player serves as
// a placeholder dealer/winner; adjustment records never move points through
// the dealer rule. Returns nil when there are no players or no non-zero
// deltas.
func (l *Ledger) CreateAdjustment(players []*Player, adjustments []ScoreAdjustment, roundNumber int, now time.Time) *RoundRecord {
	if len(players) == 0 {
		return nil
	}
	kept := make([]ScoreAdjustment, 0, len(adjustments))
	for _, a := range adjustments {
		if a.Delta != 0 {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	placeholder := ids[0]
	s := l.NewSession(ids, placeholder, now)
	if s == nil {
		return nil
	}
	r := &RoundRecord{
		ID:           uuid.New(),
		Timestamp:    now,
		RoundNumber:  roundNumber,
		WinnerID:     placeholder,
		DealerID:     placeholder,
		SessionID:    s.ID,
		IsAdjustment: true,
		Adjustments:  kept,
	}
	l.AttachRecord(r)
	return r
}

// UndoRound retracts a record: it is removed from its session's list and
// dropped from the arena. Nothing is recomputed because every statistic is
// derived from the records that remain. No-op when the record does not
// belong to the session.
func (l *Ledger) UndoRound(r *RoundRecord, s *GameSession) {
	if r == nil || s == nil || r.SessionID != s.ID {
		return
	}
	for i, id := range s.RecordIDs {
		if id == r.ID {
			s.RecordIDs = append(s.RecordIDs[:i], s.RecordIDs[i+1:]...)
			break
		}
	}
	for i, id := range l.order {
		if id == r.ID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	delete(l.Records, r.ID)
	r.SessionID = uuid.Nil
}

// UpdateRound overwrites the mutable fields of a committed record in place
// after the same validation as CreateRound. RoundNumber, DealerID, the
// original timestamp and the record's position in its session all stay
// untouched, so day grouping and numbering remain stable across edits.
// No-op on invalid input.
func (l *Ledger) UpdateRound(r *RoundRecord, s *GameSession, winnerID uuid.UUID, loserID *uuid.UUID, isSelfDrawn bool, kongs []KongDetail) {
	if r == nil || s == nil || r.SessionID != s.ID || r.IsAdjustment {
		return
	}
	if l.tablePlayers(s) == nil || !s.HasPlayer(winnerID) {
		return
	}
	if !isSelfDrawn && loserID != nil {
		if *loserID == winnerID || !s.HasPlayer(*loserID) {
			return
		}
	}
	r.WinnerID = winnerID
	r.LoserID = copyLoser(loserID)
	r.IsSelfDrawn = isSelfDrawn
	r.Kongs = clampKongs(kongs)
}

func copyLoser(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func clampKongs(kongs []KongDetail) []KongDetail {
	out := make([]KongDetail, 0, len(kongs))
	for _, k := range kongs {
		out = append(out, ClampKong(k))
	}
	return out
}
