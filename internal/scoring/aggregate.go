package scoring

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mahjongledger/internal/ledger"
)

// Aggregator derives every player-facing statistic by replaying the record
// set. The clock and calendar are injected so "today" is testable and
// consistent with the host.
type Aggregator struct {
	Now func() time.Time
	Loc *time.Location
}

// NewAggregator returns an aggregator on the wall clock and local calendar.
func NewAggregator() *Aggregator {
	return &Aggregator{Now: time.Now, Loc: time.Local}
}

// PlayerStats is a one-pass fold over a record subset, the building block
// for both the totals view and the per-day log view.
type PlayerStats struct {
	ScoreDelta         int
	WinCount           int
	SelfDrawnCount     int
	LoseCount          int
	ExposedKongCount   int
	ConcealedKongCount int
}

// DayGroup is one calendar day's records, ascending by timestamp.
type DayGroup struct {
	Day     time.Time
	Records []*ledger.RoundRecord
}

// replayDeltas resolves a record's participants and computes its deltas.
// Normal records replay against their session's players and require exactly
// four to resolve; anything else is un-replayable and returns nil so the
// record degrades to contributing nothing. Adjustment records replay
// against the players their entries name, so they survive session rebuilds.
func replayDeltas(l *ledger.Ledger, r *ledger.RoundRecord) map[uuid.UUID]int {
	if r.IsAdjustment {
		deltas := make(map[uuid.UUID]int)
		for _, adj := range r.Adjustments {
			if p := l.PlayerByName(adj.PlayerName); p != nil {
				deltas[p.ID] += adj.Delta
			}
		}
		return deltas
	}
	players := l.SessionPlayers(l.Sessions[r.SessionID])
	if len(players) != 4 {
		return nil
	}
	return RoundDeltas(r, players)
}

// TotalScore is the sum of the player's delta over every replayable record.
func (a *Aggregator) TotalScore(l *ledger.Ledger, p *ledger.Player) int {
	total := 0
	for _, r := range l.OrderedRecords() {
		total += replayDeltas(l, r)[p.ID]
	}
	return total
}

// WinCount counts non-adjustment records won by the player.
func (a *Aggregator) WinCount(l *ledger.Ledger, p *ledger.Player) int {
	n := 0
	for _, r := range l.OrderedRecords() {
		if !r.IsAdjustment && r.WinnerID == p.ID {
			n++
		}
	}
	return n
}

// LoseCount counts non-adjustment records where the player discarded the
// winning tile.
func (a *Aggregator) LoseCount(l *ledger.Ledger, p *ledger.Player) int {
	n := 0
	for _, r := range l.OrderedRecords() {
		if !r.IsAdjustment && r.LoserID != nil && *r.LoserID == p.ID {
			n++
		}
	}
	return n
}

// SelfDrawnCount counts the player's self-drawn wins.
func (a *Aggregator) SelfDrawnCount(l *ledger.Ledger, p *ledger.Player) int {
	n := 0
	for _, r := range l.OrderedRecords() {
		if !r.IsAdjustment && r.WinnerID == p.ID && r.IsSelfDrawn {
			n++
		}
	}
	return n
}

// TotalKongs sums the player's exposed plus concealed kong counts across
// all non-adjustment records.
func (a *Aggregator) TotalKongs(l *ledger.Ledger, p *ledger.Player) int {
	n := 0
	for _, r := range l.OrderedRecords() {
		if r.IsAdjustment {
			continue
		}
		for _, k := range r.Kongs {
			if k.PlayerID == p.ID {
				n += k.ExposedKongCount + k.ConcealedKongCount
			}
		}
	}
	return n
}

// NextRoundNumberForToday seeds a new round's day-scoped number: the count
// of records timestamped within the current local calendar day, plus one.
// Adjustment records count too.
func (a *Aggregator) NextRoundNumberForToday(l *ledger.Ledger) int {
	today := a.dayOf(a.Now())
	n := 0
	for _, r := range l.OrderedRecords() {
		if a.dayOf(r.Timestamp).Equal(today) {
			n++
		}
	}
	return n + 1
}

// SessionScoreDelta is the player's net delta over non-adjustment records
// after the most recent adjustment. An adjustment resets the "how are we
// doing" window without touching the historical total.
func (a *Aggregator) SessionScoreDelta(l *ledger.Ledger, p *ledger.Player) int {
	records := l.OrderedRecords()
	start := adjustmentCut(records, func(r *ledger.RoundRecord) bool { return true })
	total := 0
	for _, r := range records[start:] {
		if !r.IsAdjustment {
			total += replayDeltas(l, r)[p.ID]
		}
	}
	return total
}

// TodayScoreDelta is like SessionScoreDelta but restricted to today's
// records, with the window cut at the most recent adjustment that names the
// player.
func (a *Aggregator) TodayScoreDelta(l *ledger.Ledger, p *ledger.Player) int {
	records := l.OrderedRecords()
	name := strings.TrimSpace(p.Name)
	start := adjustmentCut(records, func(r *ledger.RoundRecord) bool {
		for _, adj := range r.Adjustments {
			if strings.TrimSpace(adj.PlayerName) == name {
				return true
			}
		}
		return false
	})
	today := a.dayOf(a.Now())
	total := 0
	for _, r := range records[start:] {
		if !r.IsAdjustment && a.dayOf(r.Timestamp).Equal(today) {
			total += replayDeltas(l, r)[p.ID]
		}
	}
	return total
}

// adjustmentCut returns the index just past the last adjustment record
// matched by the filter, or 0 when there is none.
func adjustmentCut(records []*ledger.RoundRecord, match func(*ledger.RoundRecord) bool) int {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].IsAdjustment && match(records[i]) {
			return i + 1
		}
	}
	return 0
}

// GroupRecordsByDay partitions all records by local calendar day. Records
// within a day are ascending by timestamp; days are ordered most recent
// first.
func (a *Aggregator) GroupRecordsByDay(l *ledger.Ledger) []DayGroup {
	byDay := make(map[time.Time][]*ledger.RoundRecord)
	for _, r := range l.OrderedRecords() {
		day := a.dayOf(r.Timestamp)
		byDay[day] = append(byDay[day], r)
	}
	groups := make([]DayGroup, 0, len(byDay))
	for day, records := range byDay {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Timestamp.Before(records[j].Timestamp)
		})
		groups = append(groups, DayGroup{Day: day, Records: records})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Day.After(groups[j].Day)
	})
	return groups
}

// AggregateStats folds a supplied record subset into one player's stats.
func (a *Aggregator) AggregateStats(l *ledger.Ledger, p *ledger.Player, records []*ledger.RoundRecord) PlayerStats {
	var stats PlayerStats
	for _, r := range records {
		stats.ScoreDelta += replayDeltas(l, r)[p.ID]
		if r.IsAdjustment {
			continue
		}
		if r.WinnerID == p.ID {
			stats.WinCount++
			if r.IsSelfDrawn {
				stats.SelfDrawnCount++
			}
		}
		if r.LoserID != nil && *r.LoserID == p.ID {
			stats.LoseCount++
		}
		for _, k := range r.Kongs {
			if k.PlayerID == p.ID {
				stats.ExposedKongCount += k.ExposedKongCount
				stats.ConcealedKongCount += k.ConcealedKongCount
			}
		}
	}
	return stats
}

func (a *Aggregator) dayOf(t time.Time) time.Time {
	t = t.In(a.Loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.Loc)
}
