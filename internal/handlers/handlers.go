package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mahjongledger/internal/ledger"
	"mahjongledger/internal/logging"
	"mahjongledger/internal/scoring"
	"mahjongledger/internal/storage"
)

// Handler contains dependencies for HTTP handlers. It owns the single mutex
// serializing access to the in-memory ledger; the engine itself is
// synchronous and lock-free.
type Handler struct {
	Mu     sync.Mutex
	Ledger *ledger.Ledger
	Agg    *scoring.Aggregator
	Store  *storage.Store
}

// NewHandler creates a new handler instance.
func NewHandler(l *ledger.Ledger, agg *scoring.Aggregator, store *storage.Store) *Handler {
	return &Handler{Ledger: l, Agg: agg, Store: store}
}

type playerRequest struct {
	Name       string `json:"name"`
	AvatarIcon string `json:"avatarIcon"`
}

type playerView struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	AvatarIcon string    `json:"avatarIcon,omitempty"`
}

type sessionRequest struct {
	PlayerIDs []uuid.UUID `json:"playerIds"`
	DealerID  uuid.UUID   `json:"dealerId"`
}

type sessionView struct {
	ID              uuid.UUID   `json:"id"`
	PlayerIDs       []uuid.UUID `json:"playerIds"`
	CurrentDealerID uuid.UUID   `json:"currentDealerId"`
}

type kongInput struct {
	PlayerID  uuid.UUID `json:"playerId"`
	Exposed   int       `json:"exposed"`
	Concealed int       `json:"concealed"`
}

type roundRequest struct {
	WinnerID    uuid.UUID   `json:"winnerId"`
	LoserID     *uuid.UUID  `json:"loserId"`
	IsSelfDrawn bool        `json:"isSelfDrawn"`
	Kongs       []kongInput `json:"kongs"`
}

type recordView struct {
	ID           uuid.UUID                `json:"id"`
	Timestamp    string                   `json:"timestamp"`
	RoundNumber  int                      `json:"roundNumber"`
	WinnerName   string                   `json:"winnerName,omitempty"`
	LoserName    string                   `json:"loserName,omitempty"`
	DealerName   string                   `json:"dealerName,omitempty"`
	IsSelfDrawn  bool                     `json:"isSelfDrawn"`
	IsAdjustment bool                     `json:"isAdjustment"`
	Adjustments  []ledger.ScoreAdjustment `json:"adjustments,omitempty"`
}

type transferView struct {
	PayerName string `json:"payerName"`
	PayeeName string `json:"payeeName"`
	Amount    int    `json:"amount"`
}

func toKongs(in []kongInput) []ledger.KongDetail {
	out := make([]ledger.KongDetail, 0, len(in))
	for _, k := range in {
		out = append(out, ledger.KongDetail{
			PlayerID:           k.PlayerID,
			ExposedKongCount:   k.Exposed,
			ConcealedKongCount: k.Concealed,
		})
	}
	return out
}

func (h *Handler) name(id uuid.UUID) string {
	if p := h.Ledger.Players[id]; p != nil {
		return p.Name
	}
	return ""
}

func (h *Handler) recordView(r *ledger.RoundRecord) recordView {
	v := recordView{
		ID:           r.ID,
		Timestamp:    r.Timestamp.Format("2006-01-02 15:04:05"),
		RoundNumber:  r.RoundNumber,
		IsSelfDrawn:  r.IsSelfDrawn,
		IsAdjustment: r.IsAdjustment,
		Adjustments:  r.Adjustments,
	}
	if !r.IsAdjustment {
		v.WinnerName = h.name(r.WinnerID)
		v.DealerName = h.name(r.DealerID)
		if r.LoserID != nil {
			v.LoserName = h.name(*r.LoserID)
		}
	}
	return v
}

func (h *Handler) transferViews(ts []scoring.Transfer) []transferView {
	out := make([]transferView, 0, len(ts))
	for _, t := range ts {
		out = append(out, transferView{
			PayerName: h.name(t.PayerID),
			PayeeName: h.name(t.PayeeID),
			Amount:    t.Amount,
		})
	}
	return out
}

// HandlePlayers lists players (GET) or creates one (POST).
func (h *Handler) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Mu.Lock()
		defer h.Mu.Unlock()
		out := []playerView{}
		for _, p := range h.Ledger.Players {
			out = append(out, playerView{ID: p.ID, Name: p.Name, AvatarIcon: p.AvatarIcon})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "players": out})
	case http.MethodPost:
		var req playerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing name"})
			return
		}
		h.Mu.Lock()
		defer h.Mu.Unlock()
		if h.Ledger.PlayerByName(name) != nil {
			WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "name already taken"})
			return
		}
		p := h.Ledger.AddPlayer(name, req.AvatarIcon, nil)
		if err := h.Store.SavePlayer(r.Context(), p); err != nil {
			logging.Errorf("save player %s: %v", p.ID, err)
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "player": playerView{ID: p.ID, Name: p.Name, AvatarIcon: p.AvatarIcon}})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessions creates a table of four players plus a dealer marker.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	if len(req.PlayerIDs) != 4 || hasDuplicate(req.PlayerIDs) {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "need four distinct players"})
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	s := h.Ledger.NewSession(req.PlayerIDs, req.DealerID, h.Agg.Now())
	if s == nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unknown player or dealer not seated"})
		return
	}
	if err := h.Store.SaveSession(r.Context(), s); err != nil {
		logging.Errorf("save session %s: %v", s.ID, err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "session": sessionView{
		ID: s.ID, PlayerIDs: s.PlayerIDs, CurrentDealerID: s.CurrentDealerID,
	}})
}

// HandleSession routes /sessions/{id}/dealer and /sessions/{id}/rounds.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil || len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	switch parts[1] {
	case "dealer":
		h.handleDealer(w, r, id)
	case "rounds":
		h.handleCreateRound(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleDealer(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		DealerID uuid.UUID `json:"dealerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	s := h.Ledger.Sessions[sessionID]
	if s == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	if !s.HasPlayer(req.DealerID) {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "dealer not seated"})
		return
	}
	s.CurrentDealerID = req.DealerID
	if err := h.Store.SaveSession(r.Context(), s); err != nil {
		logging.Errorf("save session %s: %v", s.ID, err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "session": sessionView{
		ID: s.ID, PlayerIDs: s.PlayerIDs, CurrentDealerID: s.CurrentDealerID,
	}})
}

func (h *Handler) handleCreateRound(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req roundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	s := h.Ledger.Sessions[sessionID]
	if s == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	roundNumber := h.Agg.NextRoundNumberForToday(h.Ledger)
	rec := h.Ledger.CreateRound(s, roundNumber, req.WinnerID, req.LoserID, req.IsSelfDrawn, toKongs(req.Kongs), h.Agg.Now())
	if rec == nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid round"})
		return
	}
	if err := h.Store.InsertRound(r.Context(), rec); err != nil {
		logging.Errorf("insert round %s: %v", rec.ID, err)
	}
	players := h.Ledger.SessionPlayers(s)
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"record":    h.recordView(rec),
		"deltas":    h.deltaViews(scoring.RoundDeltas(rec, players)),
		"transfers": h.transferViews(scoring.NetTransfers(scoring.RoundTransfers(rec, players))),
	})
}

// HandleRound routes /rounds/{id} (PUT, DELETE) and /rounds/{id}/result (GET).
func (h *Handler) HandleRound(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rounds/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] == "result" && r.Method == http.MethodGet {
			h.handleRoundResult(w, r, id)
			return
		}
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		h.handleUpdateRound(w, r, id)
	case http.MethodDelete:
		h.handleUndoRound(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRoundResult(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	rec := h.Ledger.Records[id]
	if rec == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown round"})
		return
	}
	players := h.Ledger.SessionPlayers(h.Ledger.Sessions[rec.SessionID])
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"record":    h.recordView(rec),
		"deltas":    h.deltaViews(scoring.RoundDeltas(rec, players)),
		"transfers": h.transferViews(scoring.NetTransfers(scoring.RoundTransfers(rec, players))),
	})
}

func (h *Handler) handleUpdateRound(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req roundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	rec := h.Ledger.Records[id]
	if rec == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown round"})
		return
	}
	// The engine stays silent on invalid edits, so pre-validate here to give
	// the caller a real status code.
	s := h.Ledger.Sessions[rec.SessionID]
	if s == nil || rec.IsAdjustment || !s.HasPlayer(req.WinnerID) {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid round"})
		return
	}
	if !req.IsSelfDrawn && req.LoserID != nil && (*req.LoserID == req.WinnerID || !s.HasPlayer(*req.LoserID)) {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid loser"})
		return
	}
	h.Ledger.UpdateRound(rec, s, req.WinnerID, req.LoserID, req.IsSelfDrawn, toKongs(req.Kongs))
	if err := h.Store.UpdateRound(r.Context(), rec); err != nil {
		logging.Errorf("update round %s: %v", rec.ID, err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "record": h.recordView(rec)})
}

func (h *Handler) handleUndoRound(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	rec := h.Ledger.Records[id]
	if rec == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown round"})
		return
	}
	s := h.Ledger.Sessions[rec.SessionID]
	h.Ledger.UndoRound(rec, s)
	if err := h.Store.DeleteRound(r.Context(), id); err != nil {
		logging.Errorf("delete round %s: %v", id, err)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) deltaViews(deltas map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(deltas))
	for id, d := range deltas {
		if name := h.name(id); name != "" {
			out[name] = d
		}
	}
	return out
}

func hasDuplicate(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}
