package ledger

import (
	"time"

	"github.com/google/uuid"
)

// MaxKongsPerRound bounds how many kongs a single player can declare in one round.
const MaxKongsPerRound = 4

// Player identifies one participant. Scores are never stored here; every
// total is derived by replaying round records.
type Player struct {
	ID         uuid.UUID
	Name       string
	AvatarIcon string
	Avatar     []byte
}

// KongDetail records how many exposed and concealed kongs a player declared
// in a single round. Counts are clamped to [0, MaxKongsPerRound].
type KongDetail struct {
	PlayerID           uuid.UUID
	ExposedKongCount   int
	ConcealedKongCount int
}

// ScoreAdjustment is one line of a manual rebalance. It is keyed by player
// name, not id, so the entry survives player re-creation across CSV
// round-trips.
type ScoreAdjustment struct {
	PlayerName string
	Delta      int
}

// RoundRecord is the atomic unit of truth: one settled round, or one manual
// adjustment when IsAdjustment is set. DealerID is captured from the session
// at creation time and never changes afterward.
type RoundRecord struct {
	ID          uuid.UUID
	Timestamp   time.Time
	RoundNumber int
	WinnerID    uuid.UUID
	LoserID     *uuid.UUID
	IsSelfDrawn bool
	Kongs       []KongDetail
	DealerID    uuid.UUID

	// SessionID is the owning session, or uuid.Nil once the record has been
	// retracted.
	SessionID uuid.UUID

	IsAdjustment bool
	Adjustments  []ScoreAdjustment
}

// GameSession is a table of players plus a dealer marker. Playable tables
// hold exactly four players; a CSV import may build a wider union session,
// which the scoring side treats as un-replayable per record (participants
// are resolved from record fields instead).
type GameSession struct {
	ID              uuid.UUID
	PlayerIDs       []uuid.UUID
	CurrentDealerID uuid.UUID
	RecordIDs       []uuid.UUID
	CreatedAt       time.Time
}

// HasPlayer reports whether id is seated at this session.
func (s *GameSession) HasPlayer(id uuid.UUID) bool {
	for _, pid := range s.PlayerIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// ClampKong bounds both counts of a kong detail to [0, MaxKongsPerRound].
func ClampKong(k KongDetail) KongDetail {
	k.ExposedKongCount = clampCount(k.ExposedKongCount)
	k.ConcealedKongCount = clampCount(k.ConcealedKongCount)
	return k
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxKongsPerRound {
		return MaxKongsPerRound
	}
	return n
}
