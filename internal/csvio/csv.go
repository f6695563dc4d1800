// Package csvio serializes the record set to and from the 9-column score
// log format. Names, never ids, appear on the wire so a file survives
// database rebuilds; export then overwrite-import must reproduce every
// player's totals.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mahjongledger/internal/ledger"
)

// Column layout, fixed.
var header = []string{
	"Type", "Timestamp", "RoundNumber", "DealerName", "WinnerName",
	"LoserName", "IsSelfDrawn", "Kongs", "Adjustments",
}

const (
	typeNormal     = "Normal"
	typeAdjustment = "Adjustment"
	timeLayout     = "2006-01-02 15:04:05"
)

// Mode selects whether an import replaces the existing record set or adds
// to it.
type Mode int

const (
	ModeAppend Mode = iota
	ModeOverwrite
)

// FormatError describes why an import was rejected. Row is the 1-based
// line in the file, or 0 for structural problems with the file as a whole.
// An import that returns a FormatError has changed nothing.
type FormatError struct {
	Row    int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return e.Reason
}

// Export renders every record in ledger order. Only players with a nonzero
// kong count appear in the Kongs column. Normal records whose winner or
// dealer no longer resolves to a name are skipped: they are un-replayable
// anyway, and emitting empty name fields would produce a file this
// package's own Import rejects.
func Export(l *ledger.Ledger) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(header)
	for _, r := range l.OrderedRecords() {
		if !r.IsAdjustment &&
			(playerName(l, r.WinnerID) == "" || playerName(l, r.DealerID) == "") {
			continue
		}
		_ = w.Write(exportRow(l, r))
	}
	w.Flush()
	return sb.String()
}

func exportRow(l *ledger.Ledger, r *ledger.RoundRecord) []string {
	typ := typeNormal
	if r.IsAdjustment {
		typ = typeAdjustment
	}
	loser := ""
	if r.LoserID != nil {
		loser = playerName(l, *r.LoserID)
	}
	var kongs []string
	for _, k := range r.Kongs {
		if k.ExposedKongCount == 0 && k.ConcealedKongCount == 0 {
			continue
		}
		kongs = append(kongs, fmt.Sprintf("%s:%d:%d",
			playerName(l, k.PlayerID), k.ExposedKongCount, k.ConcealedKongCount))
	}
	var adjustments []string
	for _, a := range r.Adjustments {
		adjustments = append(adjustments, fmt.Sprintf("%s:%d", a.PlayerName, a.Delta))
	}
	return []string{
		typ,
		r.Timestamp.Format(timeLayout),
		strconv.Itoa(r.RoundNumber),
		playerName(l, r.DealerID),
		playerName(l, r.WinnerID),
		loser,
		strconv.FormatBool(r.IsSelfDrawn),
		strings.Join(kongs, "|"),
		strings.Join(adjustments, "|"),
	}
}

func playerName(l *ledger.Ledger, id uuid.UUID) string {
	if p := l.Players[id]; p != nil {
		return p.Name
	}
	return ""
}

// parsed intermediate forms, produced by the validation pass.

type kongEntry struct {
	name      string
	exposed   int
	concealed int
}

type parsedRow struct {
	isAdjustment bool
	timestamp    time.Time
	roundNumber  int
	dealer       string
	winner       string
	loser        string
	isSelfDrawn  bool
	kongs        []kongEntry
	adjustments  []ledger.ScoreAdjustment
}

// Import decodes csvText into the ledger. Timestamps are read in loc
// (time.Local when nil). Validation is strictly two-pass: every row is
// checked before any state changes, so a bad file is rejected with a
// row-numbered *FormatError and zero side effects. On success it resolves
// or auto-creates players by trimmed name, purges existing records first in
// overwrite mode, and materializes one session over the union of all names
// in the file plus one record per row with original timestamps and round
// numbers. Returns the number of records imported.
func Import(l *ledger.Ledger, csvText string, mode Mode, now time.Time, loc *time.Location) (int, error) {
	if loc == nil {
		loc = time.Local
	}
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return 0, &FormatError{Row: pe.Line, Reason: pe.Err.Error()}
		}
		return 0, &FormatError{Reason: err.Error()}
	}
	if len(rows) < 2 {
		return 0, &FormatError{Reason: "need a header row and at least one data row"}
	}
	if len(rows[0]) < len(header) {
		return 0, &FormatError{Reason: fmt.Sprintf("header has %d columns, want %d", len(rows[0]), len(header))}
	}

	parsed := make([]parsedRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, counting the header
		pr, err := parseRow(row, rowNum, loc)
		if err != nil {
			return 0, err
		}
		parsed = append(parsed, pr)
	}

	// Union of names the file touches, in first-seen order. Computed before
	// any mutation so a file with nothing usable in it cannot purge records
	// in overwrite mode and then fail.
	var names []string
	seen := make(map[string]bool)
	touch := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, pr := range parsed {
		touch(pr.dealer)
		touch(pr.winner)
		touch(pr.loser)
		for _, k := range pr.kongs {
			touch(k.name)
		}
		for _, a := range pr.adjustments {
			touch(a.PlayerName)
		}
	}
	if len(names) == 0 {
		return 0, &FormatError{Reason: "no player names in file"}
	}

	if mode == ModeOverwrite {
		l.RemoveAllRecords()
	}

	// Resolve or create every player the file touches.
	resolve := func(name string) *ledger.Player {
		name = strings.TrimSpace(name)
		if p := l.PlayerByName(name); p != nil {
			return p
		}
		return l.AddPlayer(name, "", nil)
	}
	sessionIDs := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		sessionIDs = append(sessionIDs, resolve(name).ID)
	}

	// One synthetic session over the union of all names, even when that
	// union exceeds four; per-record participant resolution compensates.
	session := l.NewSession(sessionIDs, sessionIDs[0], now)
	placeholder := sessionIDs[0]

	for _, pr := range parsed {
		r := &ledger.RoundRecord{
			ID:          uuid.New(),
			Timestamp:   pr.timestamp,
			RoundNumber: pr.roundNumber,
			IsSelfDrawn: pr.isSelfDrawn,
			SessionID:   session.ID,
		}
		if pr.isAdjustment {
			r.IsAdjustment = true
			r.Adjustments = pr.adjustments
			r.WinnerID = placeholder
			r.DealerID = placeholder
		} else {
			r.DealerID = resolve(pr.dealer).ID
			r.WinnerID = resolve(pr.winner).ID
			if strings.TrimSpace(pr.loser) != "" {
				id := resolve(pr.loser).ID
				r.LoserID = &id
			}
			for _, k := range pr.kongs {
				r.Kongs = append(r.Kongs, ledger.ClampKong(ledger.KongDetail{
					PlayerID:           resolve(k.name).ID,
					ExposedKongCount:   k.exposed,
					ConcealedKongCount: k.concealed,
				}))
			}
		}
		l.AttachRecord(r)
	}
	return len(parsed), nil
}

func parseRow(row []string, rowNum int, loc *time.Location) (parsedRow, error) {
	var pr parsedRow
	fail := func(format string, args ...any) (parsedRow, error) {
		return parsedRow{}, &FormatError{Row: rowNum, Reason: fmt.Sprintf(format, args...)}
	}
	if len(row) < len(header) {
		return fail("has %d columns, want %d", len(row), len(header))
	}
	switch strings.TrimSpace(row[0]) {
	case typeNormal:
	case typeAdjustment:
		pr.isAdjustment = true
	default:
		return fail("unknown record type %q", row[0])
	}
	ts, err := time.ParseInLocation(timeLayout, strings.TrimSpace(row[1]), loc)
	if err != nil {
		return fail("bad timestamp %q", row[1])
	}
	pr.timestamp = ts
	n, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return fail("bad round number %q", row[2])
	}
	pr.roundNumber = n
	pr.dealer = row[3]
	pr.winner = row[4]
	pr.loser = row[5]
	if s := strings.TrimSpace(row[6]); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fail("bad self-drawn flag %q", row[6])
		}
		pr.isSelfDrawn = b
	}
	pr.kongs, err = parseKongs(row[7])
	if err != nil {
		return fail("bad kongs field: %v", err)
	}
	pr.adjustments, err = parseAdjustments(row[8])
	if err != nil {
		return fail("bad adjustments field: %v", err)
	}
	if pr.isAdjustment {
		if len(pr.adjustments) == 0 {
			return fail("adjustment row has no adjustments")
		}
	} else {
		if strings.TrimSpace(pr.dealer) == "" {
			return fail("missing dealer name")
		}
		if strings.TrimSpace(pr.winner) == "" {
			return fail("missing winner name")
		}
	}
	return pr, nil
}

func parseKongs(field string) ([]kongEntry, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	var out []kongEntry
	for _, part := range strings.Split(field, "|") {
		bits := strings.Split(part, ":")
		if len(bits) != 3 {
			return nil, fmt.Errorf("entry %q is not name:exposed:concealed", part)
		}
		if strings.TrimSpace(bits[0]) == "" {
			return nil, fmt.Errorf("entry %q has an empty player name", part)
		}
		exposed, err := strconv.Atoi(strings.TrimSpace(bits[1]))
		if err != nil {
			return nil, fmt.Errorf("entry %q has a bad exposed count", part)
		}
		concealed, err := strconv.Atoi(strings.TrimSpace(bits[2]))
		if err != nil {
			return nil, fmt.Errorf("entry %q has a bad concealed count", part)
		}
		out = append(out, kongEntry{name: bits[0], exposed: exposed, concealed: concealed})
	}
	return out, nil
}

func parseAdjustments(field string) ([]ledger.ScoreAdjustment, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	var out []ledger.ScoreAdjustment
	for _, part := range strings.Split(field, "|") {
		idx := strings.LastIndex(part, ":")
		if idx < 0 {
			return nil, fmt.Errorf("entry %q is not name:delta", part)
		}
		if strings.TrimSpace(part[:idx]) == "" {
			return nil, fmt.Errorf("entry %q has an empty player name", part)
		}
		delta, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("entry %q has a bad delta", part)
		}
		out = append(out, ledger.ScoreAdjustment{PlayerName: part[:idx], Delta: delta})
	}
	return out, nil
}
