package main

import (
	"context"
	"encoding/gob"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quizbot"

	"github.com/gorilla/sessions"
)

func init() {
	gob.Register(cookieState{})
}

func main() {
	cfg := quizbot.LoadConfig()

	port := flag.String("port", cfg.Port, "HTTP port")
	verbose := flag.Bool("verbose", cfg.Verbose, "Enable verbose debugging output")
	flag.Parse()

	quizbot.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := quizbot.OpenAnswerDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	backend, err := cfg.NewBackend(ctx)
	if err != nil {
		log.Fatalf("Failed to create backend: %v", err)
	}

	transcripts, err := quizbot.NewTranscriptLog(cfg.TranscriptDir)
	if err != nil {
		log.Printf("Continuing without transcripts: %v", err)
	}

	store := quizbot.NewMemoryStore(cfg.SessionTTL)
	go sweepSessions(ctx, store, 10*time.Minute)

	server := &Server{
		engine:  quizbot.NewEngine(backend, store, cfg.EngineOptions(transcripts)),
		answers: db,
		stats:   db,
		cookies: sessions.NewCookieStore([]byte(cfg.SessionSecret)),
	}

	httpServer := &http.Server{
		Addr:              ":" + *port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", *port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func sweepSessions(ctx context.Context, store *quizbot.MemoryStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				quizbot.VerboseLog("Swept %d quiz sessions", n)
			}
		}
	}
}
