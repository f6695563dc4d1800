// Package scoring computes point movement for round records. Everything
// here is a pure function over the ledger types: no player is ever mutated,
// totals come from replaying records.
package scoring

import (
	"strings"

	"github.com/google/uuid"

	"mahjongledger/internal/ledger"
)

// Base payments. A discard win charges the discarder the self-draw base and
// the two bystanders half of it; each exposed kong collects kongExposedBase
// per kong from every other player, concealed kongs collect double that.
const (
	winBase           = 20
	bystanderBase     = 10
	kongExposedBase   = 10
	kongConcealedBase = 20
)

// Transfer is one payment from payer to payee. Amount is always positive.
type Transfer struct {
	PayerID uuid.UUID
	PayeeID uuid.UUID
	Amount  int
}

// forEachTransfer walks every payment a non-adjustment record produces,
// applying the dealer-doubling rule to each leg. Requires exactly four
// players and a resolvable winner; otherwise it emits nothing. This is the
// single path through which points move.
func forEachTransfer(r *ledger.RoundRecord, players []*ledger.Player, visit func(payerID, payeeID uuid.UUID, amount int)) {
	if r == nil || r.IsAdjustment || len(players) != 4 {
		return
	}
	byID := make(map[uuid.UUID]*ledger.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	if byID[r.WinnerID] == nil {
		return
	}
	dealerID := r.DealerID

	emit := func(payerID, payeeID uuid.UUID, base int) {
		amount := base
		if payerID == dealerID || payeeID == dealerID {
			amount = base * 2
		}
		if amount > 0 {
			visit(payerID, payeeID, amount)
		}
	}

	// Win settlement.
	if r.IsSelfDrawn {
		for _, p := range players {
			if p.ID != r.WinnerID {
				emit(p.ID, r.WinnerID, winBase)
			}
		}
	} else if r.LoserID != nil {
		if loser := byID[*r.LoserID]; loser != nil && loser.ID != r.WinnerID {
			emit(loser.ID, r.WinnerID, winBase)
			for _, p := range players {
				if p.ID != r.WinnerID && p.ID != loser.ID {
					emit(p.ID, r.WinnerID, bystanderBase)
				}
			}
		}
	}

	// Kong settlement, independent of and additional to the win.
	for _, k := range r.Kongs {
		if byID[k.PlayerID] == nil {
			continue
		}
		if k.ExposedKongCount > 0 {
			base := kongExposedBase * k.ExposedKongCount
			for _, p := range players {
				if p.ID != k.PlayerID {
					emit(p.ID, k.PlayerID, base)
				}
			}
		}
		if k.ConcealedKongCount > 0 {
			base := kongConcealedBase * k.ConcealedKongCount
			for _, p := range players {
				if p.ID != k.PlayerID {
					emit(p.ID, k.PlayerID, base)
				}
			}
		}
	}
}

// RoundDeltas computes the net per-player score change for one record,
// keyed by player id. For adjustment records each entry is matched by
// trimmed name against the supplied players; unmatched names contribute
// nothing. For normal records the deltas are the net of every transfer and
// always sum to zero across the four players.
func RoundDeltas(r *ledger.RoundRecord, players []*ledger.Player) map[uuid.UUID]int {
	deltas := make(map[uuid.UUID]int, len(players))
	for _, p := range players {
		deltas[p.ID] = 0
	}
	if r == nil {
		return deltas
	}
	if r.IsAdjustment {
		for _, adj := range r.Adjustments {
			name := strings.TrimSpace(adj.PlayerName)
			for _, p := range players {
				if strings.TrimSpace(p.Name) == name {
					deltas[p.ID] += adj.Delta
					break
				}
			}
		}
		return deltas
	}
	forEachTransfer(r, players, func(payerID, payeeID uuid.UUID, amount int) {
		deltas[payerID] -= amount
		deltas[payeeID] += amount
	})
	return deltas
}

// RoundTransfers lists every individual payment a record produces, for the
// result screen. Adjustment records produce none: they are an external cash
// settlement with no payer/payee flow.
func RoundTransfers(r *ledger.RoundRecord, players []*ledger.Player) []Transfer {
	var out []Transfer
	forEachTransfer(r, players, func(payerID, payeeID uuid.UUID, amount int) {
		out = append(out, Transfer{PayerID: payerID, PayeeID: payeeID, Amount: amount})
	})
	return out
}

// NetTransfers collapses opposing payments between the same two players
// into a single net entry per pair, dropping pairs that cancel out. Display
// convenience only; authoritative deltas always come from RoundDeltas.
func NetTransfers(transfers []Transfer) []Transfer {
	type pair struct{ a, b uuid.UUID }
	canon := func(x, y uuid.UUID) (pair, bool) {
		if y.String() < x.String() {
			return pair{y, x}, true
		}
		return pair{x, y}, false
	}
	net := make(map[pair]int)
	var seen []pair
	for _, t := range transfers {
		p, flipped := canon(t.PayerID, t.PayeeID)
		if _, ok := net[p]; !ok {
			seen = append(seen, p)
		}
		if flipped {
			net[p] -= t.Amount
		} else {
			net[p] += t.Amount
		}
	}
	out := make([]Transfer, 0, len(seen))
	for _, p := range seen {
		switch n := net[p]; {
		case n > 0:
			out = append(out, Transfer{PayerID: p.a, PayeeID: p.b, Amount: n})
		case n < 0:
			out = append(out, Transfer{PayerID: p.b, PayeeID: p.a, Amount: -n})
		}
	}
	return out
}
