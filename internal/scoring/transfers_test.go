package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"mahjongledger/internal/ledger"
)

// fourPlayers builds a table of A, B, C, D inside a fresh ledger.
func fourPlayers(t *testing.T) (*ledger.Ledger, *ledger.GameSession, []*ledger.Player) {
	t.Helper()
	l := ledger.New()
	players := make([]*ledger.Player, 0, 4)
	ids := make([]uuid.UUID, 0, 4)
	for _, n := range []string{"A", "B", "C", "D"} {
		p := l.AddPlayer(n, "", nil)
		players = append(players, p)
		ids = append(ids, p.ID)
	}
	s := l.NewSession(ids, ids[0], time.Now())
	if s == nil {
		t.Fatalf("session not created")
	}
	return l, s, players
}

func sumDeltas(deltas map[uuid.UUID]int) int {
	total := 0
	for _, d := range deltas {
		total += d
	}
	return total
}

// A is the dealer and self-draws: every leg doubles, B/C/D pay 40 each.
func TestSelfDrawnByDealer(t *testing.T) {
	l, s, ps := fourPlayers(t)
	r := l.CreateRound(s, 1, ps[0].ID, nil, true, nil, time.Now())
	deltas := RoundDeltas(r, ps)

	want := map[string]int{"A": 120, "B": -40, "C": -40, "D": -40}
	for _, p := range ps {
		if deltas[p.ID] != want[p.Name] {
			t.Fatalf("%s: got %d want %d", p.Name, deltas[p.ID], want[p.Name])
		}
	}
	if sumDeltas(deltas) != 0 {
		t.Fatalf("deltas must sum to zero")
	}
}

// B deals, A discards to C: the discarder leg stays 20 (no dealer touched),
// B's bystander leg doubles from 10 to 20, D pays 10. C collects 50.
func TestDiscardWinWithDealerBystander(t *testing.T) {
	l, s, ps := fourPlayers(t)
	s.CurrentDealerID = ps[1].ID // B deals
	r := l.CreateRound(s, 1, ps[2].ID, &ps[0].ID, false, nil, time.Now())
	deltas := RoundDeltas(r, ps)

	want := map[string]int{"A": -20, "B": -20, "C": 50, "D": -10}
	for _, p := range ps {
		if deltas[p.ID] != want[p.Name] {
			t.Fatalf("%s: got %d want %d", p.Name, deltas[p.ID], want[p.Name])
		}
	}
	if sumDeltas(deltas) != 0 {
		t.Fatalf("deltas must sum to zero")
	}
}

// A discard win where the loser is the dealer doubles only the loser leg.
func TestDiscardWinByDealerLoser(t *testing.T) {
	l, s, ps := fourPlayers(t)
	s.CurrentDealerID = ps[0].ID // A deals
	r := l.CreateRound(s, 1, ps[2].ID, &ps[0].ID, false, nil, time.Now())
	deltas := RoundDeltas(r, ps)

	want := map[string]int{"A": -40, "B": -10, "C": 60, "D": -10}
	for _, p := range ps {
		if deltas[p.ID] != want[p.Name] {
			t.Fatalf("%s: got %d want %d", p.Name, deltas[p.ID], want[p.Name])
		}
	}
}

// Kong settlements stack on top of the win and double on dealer legs.
func TestKongSettlement(t *testing.T) {
	l, s, ps := fourPlayers(t)
	s.CurrentDealerID = ps[0].ID
	kongs := []ledger.KongDetail{
		{PlayerID: ps[1].ID, ExposedKongCount: 1, ConcealedKongCount: 1},
	}
	r := l.CreateRound(s, 1, ps[1].ID, nil, true, kongs, time.Now())
	deltas := RoundDeltas(r, ps)

	// Win: A pays 40 (dealer), C and D pay 20 each -> B +80.
	// Exposed kong base 10: A 20, C 10, D 10 -> B +40.
	// Concealed kong base 20: A 40, C 20, D 20 -> B +80.
	want := map[string]int{"A": -100, "B": 200, "C": -50, "D": -50}
	for _, p := range ps {
		if deltas[p.ID] != want[p.Name] {
			t.Fatalf("%s: got %d want %d", p.Name, deltas[p.ID], want[p.Name])
		}
	}
	if sumDeltas(deltas) != 0 {
		t.Fatalf("deltas must sum to zero")
	}
}

// A kong payee can still be a net payer in the same round.
func TestKongPayeeAlsoPays(t *testing.T) {
	l, s, ps := fourPlayers(t)
	s.CurrentDealerID = ps[0].ID
	kongs := []ledger.KongDetail{{PlayerID: ps[3].ID, ExposedKongCount: 1}}
	r := l.CreateRound(s, 1, ps[1].ID, nil, true, kongs, time.Now())
	deltas := RoundDeltas(r, ps)

	// D pays 20 for the self-draw but collects 10+10 plus 20 from the dealer.
	if deltas[ps[3].ID] != -20+40 {
		t.Fatalf("D: got %d want %d", deltas[ps[3].ID], 20)
	}
	if sumDeltas(deltas) != 0 {
		t.Fatalf("deltas must sum to zero")
	}
}

func TestDiscardWithoutLoserMovesNothing(t *testing.T) {
	l, s, ps := fourPlayers(t)
	r := l.CreateRound(s, 1, ps[1].ID, nil, false, nil, time.Now())
	if ts := RoundTransfers(r, ps); len(ts) != 0 {
		t.Fatalf("expected no transfers, got %d", len(ts))
	}
}

func TestWrongPlayerCountIsZero(t *testing.T) {
	l, s, ps := fourPlayers(t)
	r := l.CreateRound(s, 1, ps[0].ID, nil, true, nil, time.Now())

	deltas := RoundDeltas(r, ps[:3])
	if sumDeltas(deltas) != 0 {
		t.Fatalf("unresolvable table must produce zero deltas")
	}
	for _, d := range deltas {
		if d != 0 {
			t.Fatalf("unresolvable table must not move points")
		}
	}
	if ts := RoundTransfers(r, ps[:3]); len(ts) != 0 {
		t.Fatalf("unresolvable table must produce no transfers")
	}
}

func TestAdjustmentDeltas(t *testing.T) {
	l, _, ps := fourPlayers(t)
	r := l.CreateAdjustment(ps, []ledger.ScoreAdjustment{
		{PlayerName: " A ", Delta: 100},
		{PlayerName: "B", Delta: -100},
		{PlayerName: "Nobody", Delta: 55},
	}, 1, time.Now())

	deltas := RoundDeltas(r, ps)
	if deltas[ps[0].ID] != 100 || deltas[ps[1].ID] != -100 {
		t.Fatalf("adjustment deltas wrong: %v", deltas)
	}
	if deltas[ps[2].ID] != 0 || deltas[ps[3].ID] != 0 {
		t.Fatalf("untouched players must stay at zero")
	}
	if ts := RoundTransfers(r, ps); len(ts) != 0 {
		t.Fatalf("adjustments must not produce transfers")
	}
}

func TestRoundTransfersAmountsPositive(t *testing.T) {
	l, s, ps := fourPlayers(t)
	r := l.CreateRound(s, 1, ps[0].ID, &ps[1].ID, false, nil, time.Now())
	for _, tr := range RoundTransfers(r, ps) {
		if tr.Amount <= 0 {
			t.Fatalf("transfer amount must be positive, got %d", tr.Amount)
		}
	}
}

func TestNetTransfersCollapsesPairs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	net := NetTransfers([]Transfer{
		{PayerID: a, PayeeID: b, Amount: 30},
		{PayerID: b, PayeeID: a, Amount: 10},
	})
	if len(net) != 1 || net[0].Amount != 20 {
		t.Fatalf("expected one net transfer of 20, got %v", net)
	}
	if net[0].PayerID != a || net[0].PayeeID != b {
		t.Fatalf("net transfer points the wrong way")
	}

	if got := NetTransfers([]Transfer{
		{PayerID: a, PayeeID: b, Amount: 15},
		{PayerID: b, PayeeID: a, Amount: 15},
	}); len(got) != 0 {
		t.Fatalf("cancelling pair must vanish, got %v", got)
	}
}
