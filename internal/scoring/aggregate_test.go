package scoring

import (
	"testing"
	"time"

	"mahjongledger/internal/ledger"
)

var testDay = time.Date(2026, 2, 17, 19, 0, 0, 0, time.UTC)

// fixedAgg returns an aggregator pinned to testDay in UTC.
func fixedAgg() *Aggregator {
	return &Aggregator{
		Now: func() time.Time { return testDay },
		Loc: time.UTC,
	}
}

func TestTotalScoreAndCounts(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	// A (dealer) self-draws, then B discards to A.
	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay)
	l.CreateRound(s, 2, ps[0].ID, &ps[1].ID, false, nil, testDay.Add(time.Minute))

	// Round 1: A +120. Round 2: B pays 40 (dealer payee), C and D pay 20 each.
	if got := agg.TotalScore(l, ps[0]); got != 120+80 {
		t.Fatalf("A total: got %d want 200", got)
	}
	if got := agg.TotalScore(l, ps[1]); got != -40-40 {
		t.Fatalf("B total: got %d want -80", got)
	}
	if agg.WinCount(l, ps[0]) != 2 || agg.WinCount(l, ps[1]) != 0 {
		t.Fatalf("win counts wrong")
	}
	if agg.SelfDrawnCount(l, ps[0]) != 1 {
		t.Fatalf("self-drawn count wrong")
	}
	if agg.LoseCount(l, ps[1]) != 1 || agg.LoseCount(l, ps[2]) != 0 {
		t.Fatalf("lose counts wrong")
	}
}

func TestTotalKongs(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()
	kongs := []ledger.KongDetail{{PlayerID: ps[2].ID, ExposedKongCount: 2, ConcealedKongCount: 1}}
	l.CreateRound(s, 1, ps[0].ID, nil, true, kongs, testDay)

	if got := agg.TotalKongs(l, ps[2]); got != 3 {
		t.Fatalf("kongs: got %d want 3", got)
	}
	if got := agg.TotalKongs(l, ps[0]); got != 0 {
		t.Fatalf("winner has no kongs, got %d", got)
	}
}

// Undoing a round restores every aggregate to its pre-create value.
func TestUndoIsLeftInverseOfCreate(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()
	l.CreateRound(s, 1, ps[1].ID, nil, true, nil, testDay)

	type snapshot struct {
		total, wins, kongs, next int
	}
	take := func(p *ledger.Player) snapshot {
		return snapshot{
			total: agg.TotalScore(l, p),
			wins:  agg.WinCount(l, p),
			kongs: agg.TotalKongs(l, p),
			next:  agg.NextRoundNumberForToday(l),
		}
	}
	before := make([]snapshot, len(ps))
	for i, p := range ps {
		before[i] = take(p)
	}

	r := l.CreateRound(s, 2, ps[0].ID, &ps[2].ID, false,
		[]ledger.KongDetail{{PlayerID: ps[0].ID, ExposedKongCount: 1}}, testDay.Add(time.Minute))
	if r == nil {
		t.Fatalf("round not created")
	}
	l.UndoRound(r, s)

	for i, p := range ps {
		if got := take(p); got != before[i] {
			t.Fatalf("%s: aggregates not restored, got %+v want %+v", p.Name, got, before[i])
		}
	}
	if len(l.SessionRecords(s)) != 1 {
		t.Fatalf("session record list not restored")
	}
}

func TestNextRoundNumberForToday(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	if got := agg.NextRoundNumberForToday(l); got != 1 {
		t.Fatalf("empty ledger: got %d want 1", got)
	}
	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay.Add(-48*time.Hour)) // not today
	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay)
	l.CreateAdjustment(ps[:1], []ledger.ScoreAdjustment{{PlayerName: "A", Delta: 5}}, 2, testDay.Add(time.Hour))
	if got := agg.NextRoundNumberForToday(l); got != 3 {
		t.Fatalf("got %d want 3 (adjustments count, other days do not)", got)
	}
}

// An adjustment resets the session window without touching the total.
func TestSessionScoreDeltaResetsAtAdjustment(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay) // A +120
	l.CreateAdjustment(ps, []ledger.ScoreAdjustment{{PlayerName: "A", Delta: -120}}, 2, testDay.Add(time.Minute))
	// C discards to B; dealer A's bystander leg doubles to 20, so B +50.
	l.CreateRound(s, 3, ps[1].ID, &ps[2].ID, false, nil, testDay.Add(2*time.Minute))

	if got := agg.SessionScoreDelta(l, ps[0]); got != -20 {
		t.Fatalf("A session delta: got %d want -20", got)
	}
	if got := agg.TotalScore(l, ps[0]); got != 120-120-20 {
		t.Fatalf("A total: got %d want -20", got)
	}
	if got := agg.SessionScoreDelta(l, ps[1]); got != 50 {
		t.Fatalf("B session delta: got %d want 50", got)
	}
}

func TestTodayScoreDeltaIgnoresOtherDays(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay.Add(-24*time.Hour))
	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay)

	if got := agg.TodayScoreDelta(l, ps[0]); got != 120 {
		t.Fatalf("A today delta: got %d want 120", got)
	}
	if got := agg.TotalScore(l, ps[0]); got != 240 {
		t.Fatalf("A total: got %d want 240", got)
	}
}

func TestGroupRecordsByDayOrdering(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	r1 := l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay.Add(-24*time.Hour))
	r2 := l.CreateRound(s, 2, ps[1].ID, nil, true, nil, testDay.Add(time.Hour))
	r3 := l.CreateRound(s, 1, ps[2].ID, nil, true, nil, testDay)

	groups := agg.GroupRecordsByDay(l)
	if len(groups) != 2 {
		t.Fatalf("got %d day groups, want 2", len(groups))
	}
	today, yesterday := groups[0], groups[1]
	if !today.Day.After(yesterday.Day) {
		t.Fatalf("days must be ordered most recent first")
	}
	if len(today.Records) != 2 || today.Records[0].ID != r3.ID || today.Records[1].ID != r2.ID {
		t.Fatalf("today's records not ascending by timestamp")
	}
	if len(yesterday.Records) != 1 || yesterday.Records[0].ID != r1.ID {
		t.Fatalf("yesterday's records wrong")
	}
}

func TestAggregateStatsFold(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	l.CreateRound(s, 1, ps[0].ID, &ps[1].ID, false, nil, testDay)
	l.CreateRound(s, 2, ps[0].ID, nil, true,
		[]ledger.KongDetail{{PlayerID: ps[0].ID, ExposedKongCount: 1, ConcealedKongCount: 2}}, testDay.Add(time.Minute))

	stats := agg.AggregateStats(l, ps[0], l.OrderedRecords())
	if stats.WinCount != 2 || stats.SelfDrawnCount != 1 {
		t.Fatalf("win counts wrong: %+v", stats)
	}
	if stats.ExposedKongCount != 1 || stats.ConcealedKongCount != 2 {
		t.Fatalf("kong counts wrong: %+v", stats)
	}
	if stats.ScoreDelta != agg.TotalScore(l, ps[0]) {
		t.Fatalf("fold over all records must equal the total")
	}
	if stats.LoseCount != 0 {
		t.Fatalf("A never discarded")
	}
}

// A record whose table no longer resolves to four players degrades to
// contributing nothing instead of crashing or guessing.
func TestUnreplayableRecordExcluded(t *testing.T) {
	l, s, ps := fourPlayers(t)
	agg := fixedAgg()

	l.CreateRound(s, 1, ps[0].ID, nil, true, nil, testDay)
	if got := agg.TotalScore(l, ps[0]); got != 120 {
		t.Fatalf("got %d want 120", got)
	}
	delete(l.Players, ps[3].ID)
	if got := agg.TotalScore(l, ps[0]); got != 0 {
		t.Fatalf("un-replayable record must contribute nothing, got %d", got)
	}
	// Field-based counts still work.
	if agg.WinCount(l, ps[0]) != 1 {
		t.Fatalf("win count must survive an unresolvable table")
	}
}
