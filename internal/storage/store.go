package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mahjongledger/internal/ledger"
)

// Store wraps a gorm DB instance and provides helper methods for persisting
// the ledger. A nil Store is a valid no-op store, so the engine can run
// purely in memory when no database is configured.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store helper from a gorm DB.
func NewStore(db *gorm.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// DB exposes the underlying gorm DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// ErrNotFound is returned when a record is not found.
var ErrNotFound = gorm.ErrRecordNotFound

// SavePlayer upserts one player row.
func (s *Store) SavePlayer(ctx context.Context, p *ledger.Player) error {
	if s == nil {
		return nil
	}
	m := playerToModel(p)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

// SaveSession upserts one session row.
func (s *Store) SaveSession(ctx context.Context, sess *ledger.GameSession) error {
	if s == nil {
		return nil
	}
	m, err := sessionToModel(sess)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

// InsertRound appends a round row at the next free position.
func (s *Store) InsertRound(ctx context.Context, r *ledger.RoundRecord) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var max struct{ N int }
		if err := tx.Model(&Round{}).
			Select("COALESCE(MAX(position), -1) AS n").
			Scan(&max).Error; err != nil {
			return err
		}
		m, err := roundToModel(r, max.N+1)
		if err != nil {
			return err
		}
		return tx.Create(&m).Error
	})
}

// UpdateRound rewrites the mutable fields of an existing round row without
// touching its position.
func (s *Store) UpdateRound(ctx context.Context, r *ledger.RoundRecord) error {
	if s == nil {
		return nil
	}
	m, err := roundToModel(r, 0)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&Round{}).Where("id = ?", r.ID).
		Updates(map[string]any{
			"winner_id":     m.WinnerID,
			"loser_id":      m.LoserID,
			"is_self_drawn": m.IsSelfDrawn,
			"kongs":         m.Kongs,
		}).Error
}

// DeleteRound removes a retracted round row.
func (s *Store) DeleteRound(ctx context.Context, id uuid.UUID) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&Round{}, "id = ?", id).Error
}

// ClearRecords drops every round row. Player and session rows stay.
func (s *Store) ClearRecords(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Round{}).Error
}

/// ReplaceAll rewrites the whole store from the ledger in one transaction:
// players upserted, sessions and rounds replaced. Used after CSV import so
// either every row lands or none does.
func (s *Store) ReplaceAll(ctx context.Context, l *ledger.Ledger) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Round{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&Session{}).Error; err != nil {
			return err
		}
		for _, p := range l.Players {
			m := playerToModel(p)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&m).Error; err != nil {
				return err
			}
		}
		for _, sess := range l.Sessions {
			m, err := sessionToModel(sess)
			if err != nil {
				return err
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		for i, r := range l.OrderedRecords() {
			m, err := roundToModel(r, i)
			if err != nil {
				return err
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadLedger rebuilds the in-memory arena from the store.
func (s *Store) LoadLedger(ctx context.Context) (*ledger.Ledger, error) {
	l := ledger.New()
	if s == nil {
		return l, nil
	}
	var players []Player
	if err := s.db.WithContext(ctx).Order("created_at").Find(&players).Error; err != nil {
		return nil, err
	}
	for _, m := range players {
		l.PutPlayer(playerFromModel(m))
	}
	var sessions []Session
	if err := s.db.WithContext(ctx).Order("created_at").Find(&sessions).Error; err != nil {
		return nil, err
	}
	for _, m := range sessions {
		sess, err := sessionFromModel(m)
		if err != nil {
			return nil, err
		}
		l.PutSession(sess)
	}
	var rounds []Round
	if err := s.db.WithContext(ctx).Order("position, created_at").Find(&rounds).Error; err != nil {
		return nil, err
	}
	for _, m := range rounds {
		r, err := roundFromModel(m)
		if err != nil {
			return nil, err
		}
		l.AttachRecord(r)
	}
	return l, nil
}

// Stats represents row counts for the service info endpoint.
type Stats struct {
	Players  int64 `json:"players"`
	Sessions int64 `json:"sessions"`
	Rounds   int64 `json:"rounds"`
}

// FetchStats aggregates row counts for display.
func (s *Store) FetchStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if s == nil {
		return stats, nil
	}
	if err := s.db.WithContext(ctx).Model(&Player{}).Count(&stats.Players).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Session{}).Count(&stats.Sessions).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Round{}).Count(&stats.Rounds).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
