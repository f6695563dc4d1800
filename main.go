package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"mahjongledger/internal/handlers"
	"mahjongledger/internal/ledger"
	"mahjongledger/internal/logging"
	"mahjongledger/internal/scoring"
	"mahjongledger/internal/storage"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dsn := flag.String("dsn", "", "postgres DSN (falls back to DATABASE_URL; empty runs in-memory)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()
	logging.Debug = *debug

	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	var store *storage.Store
	book := ledger.New()
	if *dsn != "" {
		db, err := storage.New(*dsn)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = storage.NewStore(db)
		book, err = store.LoadLedger(context.Background())
		if err != nil {
			log.Fatalf("load ledger: %v", err)
		}
		log.Printf("loaded %d players, %d rounds", len(book.Players), len(book.Records))
	} else {
		log.Printf("no DSN configured, running in-memory only")
	}

	h := handlers.NewHandler(book, scoring.NewAggregator(), store)

	// Register routes
	http.HandleFunc("/players", h.HandlePlayers)
	http.HandleFunc("/sessions", h.HandleSessions)
	http.HandleFunc("/sessions/", h.HandleSession)
	http.HandleFunc("/rounds/", h.HandleRound)
	http.HandleFunc("/adjustments", h.HandleAdjust)
	http.HandleFunc("/stats", h.HandleStats)
	http.HandleFunc("/log", h.HandleLog)
	http.HandleFunc("/export", h.HandleExport)
	http.HandleFunc("/import", h.HandleImport)
	http.HandleFunc("/records", h.HandleRecords)
	http.HandleFunc("/", h.HandleIndex)

	log.Printf("mahjongledger %s listening on %s …", commit, *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
