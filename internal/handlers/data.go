package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"mahjongledger/internal/csvio"
	"mahjongledger/internal/ledger"
	"mahjongledger/internal/logging"
	"mahjongledger/pkg/utils"
)

// maxImportBytes bounds how much CSV a single import request may carry.
const maxImportBytes = 8 << 20

type statsView struct {
	Player         playerView `json:"player"`
	TotalScore     int        `json:"totalScore"`
	WinCount       int        `json:"winCount"`
	SelfDrawnCount int        `json:"selfDrawnCount"`
	LoseCount      int        `json:"loseCount"`
	TotalKongs     int        `json:"totalKongs"`
	SessionDelta   int        `json:"sessionDelta"`
	TodayDelta     int        `json:"todayDelta"`
}

// HandleStats reports every player's derived totals.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	out := []statsView{}
	for _, p := range h.Ledger.Players {
		out = append(out, statsView{
			Player:         playerView{ID: p.ID, Name: p.Name, AvatarIcon: p.AvatarIcon},
			TotalScore:     h.Agg.TotalScore(h.Ledger, p),
			WinCount:       h.Agg.WinCount(h.Ledger, p),
			SelfDrawnCount: h.Agg.SelfDrawnCount(h.Ledger, p),
			LoseCount:      h.Agg.LoseCount(h.Ledger, p),
			TotalKongs:     h.Agg.TotalKongs(h.Ledger, p),
			SessionDelta:   h.Agg.SessionScoreDelta(h.Ledger, p),
			TodayDelta:     h.Agg.TodayScoreDelta(h.Ledger, p),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "stats": out})
}

type dayGroupView struct {
	Day     string       `json:"day"`
	Records []recordView `json:"records"`
}

// HandleLog returns the match log grouped by calendar day, most recent day
// first.
func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	groups := h.Agg.GroupRecordsByDay(h.Ledger)
	out := make([]dayGroupView, 0, len(groups))
	for _, g := range groups {
		dv := dayGroupView{Day: g.Day.Format("2006-01-02")}
		for _, rec := range g.Records {
			dv.Records = append(dv.Records, h.recordView(rec))
		}
		out = append(out, dv)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "days": out})
}

type adjustTarget struct {
	PlayerID    uuid.UUID `json:"playerId"`
	TargetScore int       `json:"targetScore"`
}

// HandleAdjust rebalances recorded totals to externally agreed values: each
// target score is turned into a delta against the player's current derived
// total and written as one adjustment record.
func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Targets []adjustTarget `json:"targets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	var players []*ledger.Player
	var adjustments []ledger.ScoreAdjustment
	for _, t := range req.Targets {
		p := h.Ledger.Players[t.PlayerID]
		if p == nil {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unknown player"})
			return
		}
		players = append(players, p)
		if delta := t.TargetScore - h.Agg.TotalScore(h.Ledger, p); delta != 0 {
			adjustments = append(adjustments, ledger.ScoreAdjustment{PlayerName: p.Name, Delta: delta})
		}
	}
	rec := h.Ledger.CreateAdjustment(players, adjustments, h.Agg.NextRoundNumberForToday(h.Ledger), h.Agg.Now())
	if rec == nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "nothing to adjust"})
		return
	}
	if s := h.Ledger.Sessions[rec.SessionID]; s != nil {
		if err := h.Store.SaveSession(r.Context(), s); err != nil {
			logging.Errorf("save session %s: %v", s.ID, err)
		}
	}
	if err := h.Store.InsertRound(r.Context(), rec); err != nil {
		logging.Errorf("insert adjustment %s: %v", rec.ID, err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "record": h.recordView(rec)})
}

// HandleExport streams the full record set as a CSV download.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.Mu.Lock()
	text := csvio.Export(h.Ledger)
	now := h.Agg.Now()
	h.Mu.Unlock()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="score-log_%d.csv"`, now.Unix()))
	_, _ = io.WriteString(w, text)
}

// HandleImport ingests a CSV body. ?mode=overwrite purges existing records
// first; the default appends. A format error aborts with the offending row
// number and no state change.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode := csvio.ModeAppend
	if r.URL.Query().Get("mode") == "overwrite" {
		mode = csvio.ModeOverwrite
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		return
	}
	tag := utils.RandomHex(4)
	logging.Debugf("[%s] import from %s, %d bytes, mode=%v", tag, ClientIP(r), len(body), mode)

	h.Mu.Lock()
	defer h.Mu.Unlock()
	n, err := csvio.Import(h.Ledger, string(body), mode, h.Agg.Now(), h.Agg.Loc)
	if err != nil {
		var fe *csvio.FormatError
		if errors.As(err, &fe) {
			logging.Debugf("[%s] import rejected: %v", tag, fe)
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": fe.Reason, "row": fe.Row})
			return
		}
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if err := h.Store.ReplaceAll(r.Context(), h.Ledger); err != nil {
		logging.Errorf("[%s] persist import: %v", tag, err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "imported": n})
}

// HandleRecords clears the entire match log on DELETE. Players and sessions
// survive; with no records left to replay, every derived total falls back
// to zero.
func (h *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	n := len(h.Ledger.Records)
	h.Ledger.RemoveAllRecords()
	if err := h.Store.ClearRecords(r.Context()); err != nil {
		logging.Errorf("clear records: %v", err)
	}
	logging.Debugf("cleared %d records, requested by %s", n, ClientIP(r))
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "cleared": n})
}

// HandleIndex reports service info and storage row counts.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	stats, err := h.Store.FetchStats(r.Context())
	if err != nil {
		logging.Errorf("fetch stats: %v", err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "mahjongledger", "storage": stats})
}
