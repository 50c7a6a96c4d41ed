package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quizbot"
)

func main() {
	cfg := quizbot.LoadConfig()

	var (
		subject   = flag.String("subject", "", "Subject filter")
		grade     = flag.String("grade", "", "Grade filter")
		unit      = flag.String("unit", "", "Unit filter")
		types     = flag.String("types", "", "Comma-separated question types (multiple-choice, definition, fill-in)")
		count     = flag.Int("questions", 5, "Number of questions in the quiz")
		user      = flag.String("user", os.Getenv("USER"), "Name recorded with every answer")
		backend   = flag.String("backend", cfg.Backend, "Generation backend (openai or ollama)")
		dbPath    = flag.String("db", cfg.DBPath, "Answer database path")
		showStats = flag.Bool("stats", false, "Print per-unit statistics and exit")
		verbose   = flag.Bool("verbose", cfg.Verbose, "Enable verbose debugging output")
	)
	flag.Parse()

	quizbot.SetVerbose(*verbose)
	cfg.Backend = *backend

	db, err := quizbot.OpenAnswerDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *showStats {
		printStats(ctx, db, *user)
		return
	}

	be, err := cfg.NewBackend(ctx)
	if err != nil {
		log.Fatalf("Failed to create backend: %v", err)
	}

	transcripts, err := quizbot.NewTranscriptLog(cfg.TranscriptDir)
	if err != nil {
		log.Printf("Continuing without transcripts: %v", err)
	}

	engine := quizbot.NewEngine(be, quizbot.NewMemoryStore(cfg.SessionTTL), cfg.EngineOptions(transcripts))

	req := quizbot.GenerationRequest{
		Count:   *count,
		Filters: quizbot.Filters{Subject: *subject, Grade: *grade, Unit: *unit},
		Types:   parseTypes(*types),
	}

	playQuiz(ctx, engine, db, req, *user)
}

func parseTypes(s string) []quizbot.QuestionType {
	var types []quizbot.QuestionType
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, quizbot.QuestionType(t))
		}
	}
	return types
}

func playQuiz(ctx context.Context, engine *quizbot.Engine, db *quizbot.AnswerDB, req quizbot.GenerationRequest, user string) {
	fmt.Printf("🎯 Starting quiz: %d questions\n", req.Count)
	if !req.Filters.IsZero() {
		fmt.Printf("📚 Subject: %s  Grade: %s  Unit: %s\n", req.Filters.Subject, req.Filters.Grade, req.Filters.Unit)
	}
	fmt.Println("⏳ Generating questions... (this may take a moment)")
	fmt.Println()

	start, err := engine.RequestQuiz(ctx, req)
	if err != nil {
		var qe *quizbot.Error
		if errors.As(err, &qe) && qe.Retryable() {
			log.Fatalf("The quiz service is slow right now, try again: %v", err)
		}
		log.Fatalf("Failed to start quiz: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	question, progress := &start.Question, start.Progress
	score := 0

	for {
		printQuestion(question, progress)

		fmt.Print("Your answer (/regen for new questions): ")
		if !scanner.Scan() {
			return
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			continue
		}

		if answer == "/regen" {
			fmt.Println("⏳ Regenerating questions...")
			restart, err := engine.RegenerateQuiz(ctx, start.Session)
			if err != nil {
				fmt.Printf("Could not regenerate: %v\n\n", err)
				continue
			}
			question, progress, score = &restart.Question, restart.Progress, 0
			continue
		}

		result, err := engine.SubmitAnswer(ctx, start.Session, answer)
		if err != nil {
			log.Fatalf("Failed to submit answer: %v", err)
		}

		fmt.Println()
		switch {
		case !result.Outcome.Graded():
			fmt.Printf("💬 %s\n\n", result.Outcome.Explanation)
			continue
		case result.Outcome.Correct():
			score++
			fmt.Println("✅ Correct!")
		default:
			fmt.Printf("❌ Incorrect. The correct answer is %s\n", result.Outcome.CorrectAnswer)
		}
		if result.Outcome.Explanation != "" {
			fmt.Printf("💡 Explanation: %s\n", result.Outcome.Explanation)
		}

		if rec := result.Record(user); rec != nil && user != "" {
			if err := db.SaveAnswer(ctx, rec); err != nil {
				log.Printf("Failed to save answer: %v", err)
			}
		}

		fmt.Println()
		fmt.Println(strings.Repeat("─", 50))
		fmt.Println()

		if result.Completed {
			break
		}
		question, progress = result.NextQuestion, result.Progress
	}

	percentage := float64(score) / float64(progress.Total) * 100
	fmt.Println("🎉 Quiz completed!")
	fmt.Printf("🏆 Score: %d/%d (%.1f%%)\n", score, progress.Total, percentage)
	if percentage >= 80 {
		fmt.Println("🌟 Excellent work!")
	} else if percentage >= 60 {
		fmt.Println("👍 Good job!")
	} else {
		fmt.Println("📚 Keep studying!")
	}
}

func printQuestion(q *quizbot.Question, progress quizbot.Progress) {
	fmt.Printf("Question %d/%d [%s / %s / %s]:\n", progress.Current, progress.Total, q.Subject, q.Grade, q.Unit)
	fmt.Printf("%s\n\n", q.Text)
	for _, option := range q.Options {
		fmt.Printf("  %s\n", option)
	}
	if len(q.Options) > 0 {
		fmt.Println()
	}
}

func printStats(ctx context.Context, db *quizbot.AnswerDB, user string) {
	stats, err := db.UnitStats(ctx, user)
	if err != nil {
		log.Fatalf("Failed to load statistics: %v", err)
	}
	if len(stats) == 0 {
		fmt.Println("No answers recorded yet.")
		return
	}
	fmt.Println("📊 Statistics by unit:")
	for _, st := range stats {
		fmt.Printf("  %s / %s / %s: %d/%d (%.1f%%)\n", st.Subject, st.Grade, st.Unit, st.Correct, st.Total, st.Rate*100)
	}
}
