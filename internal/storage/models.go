package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"mahjongledger/internal/ledger"
)

// Player is the persisted form of a ledger player. No score columns: totals
// are derived by replay, never stored.
type Player struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"uniqueIndex"`
	AvatarIcon string
	Avatar     []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session is a persisted table: its seated player ids as a JSON array plus
// the current dealer marker.
type Session struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CurrentDealerID uuid.UUID `gorm:"type:uuid"`
	PlayerIDs       datatypes.JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Round is a persisted round record. Position preserves ledger insertion
// order across reloads; Kongs and Adjustments are JSON columns.
type Round struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SessionID    uuid.UUID  `gorm:"type:uuid;index"`
	Position     int        `gorm:"index"`
	Timestamp    time.Time
	RoundNumber  int
	DealerID     uuid.UUID  `gorm:"type:uuid"`
	WinnerID     uuid.UUID  `gorm:"type:uuid"`
	LoserID      *uuid.UUID `gorm:"type:uuid"`
	IsSelfDrawn  bool
	IsAdjustment bool
	Kongs        datatypes.JSON
	Adjustments  datatypes.JSON
	CreatedAt    time.Time
}

func playerToModel(p *ledger.Player) Player {
	return Player{
		ID:         p.ID,
		Name:       p.Name,
		AvatarIcon: p.AvatarIcon,
		Avatar:     p.Avatar,
	}
}

func playerFromModel(m Player) *ledger.Player {
	return &ledger.Player{
		ID:         m.ID,
		Name:       m.Name,
		AvatarIcon: m.AvatarIcon,
		Avatar:     m.Avatar,
	}
}

func sessionToModel(s *ledger.GameSession) (Session, error) {
	ids, err := json.Marshal(s.PlayerIDs)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:              s.ID,
		CurrentDealerID: s.CurrentDealerID,
		PlayerIDs:       ids,
		CreatedAt:       s.CreatedAt,
	}, nil
}

func sessionFromModel(m Session) (*ledger.GameSession, error) {
	s := &ledger.GameSession{
		ID:              m.ID,
		CurrentDealerID: m.CurrentDealerID,
		CreatedAt:       m.CreatedAt,
	}
	if len(m.PlayerIDs) > 0 {
		if err := json.Unmarshal(m.PlayerIDs, &s.PlayerIDs); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func roundToModel(r *ledger.RoundRecord, position int) (Round, error) {
	kongs, err := json.Marshal(r.Kongs)
	if err != nil {
		return Round{}, err
	}
	adjustments, err := json.Marshal(r.Adjustments)
	if err != nil {
		return Round{}, err
	}
	return Round{
		ID:           r.ID,
		SessionID:    r.SessionID,
		Position:     position,
		Timestamp:    r.Timestamp,
		RoundNumber:  r.RoundNumber,
		DealerID:     r.DealerID,
		WinnerID:     r.WinnerID,
		LoserID:      r.LoserID,
		IsSelfDrawn:  r.IsSelfDrawn,
		IsAdjustment: r.IsAdjustment,
		Kongs:        kongs,
		Adjustments:  adjustments,
	}, nil
}

func roundFromModel(m Round) (*ledger.RoundRecord, error) {
	r := &ledger.RoundRecord{
		ID:           m.ID,
		SessionID:    m.SessionID,
		Timestamp:    m.Timestamp,
		RoundNumber:  m.RoundNumber,
		DealerID:     m.DealerID,
		WinnerID:     m.WinnerID,
		LoserID:      m.LoserID,
		IsSelfDrawn:  m.IsSelfDrawn,
		IsAdjustment: m.IsAdjustment,
	}
	if len(m.Kongs) > 0 {
		if err := json.Unmarshal(m.Kongs, &r.Kongs); err != nil {
			return nil, err
		}
	}
	if len(m.Adjustments) > 0 {
		if err := json.Unmarshal(m.Adjustments, &r.Adjustments); err != nil {
			return nil, err
		}
	}
	return r, nil
}
