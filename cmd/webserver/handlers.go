package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"quizbot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

const cookieName = "quizbot"

// cookieState is what the browser cookie remembers between requests
type cookieState struct {
	User    string
	Session string
}

// StatsStore is the slice of AnswerDB the stats endpoints use
type StatsStore interface {
	UnitStats(ctx context.Context, user string) ([]quizbot.UnitStat, error)
	DeleteAnswers(ctx context.Context, user string) (int64, error)
}

// Server serves the quiz JSON API
type Server struct {
	engine  *quizbot.Engine
	answers quizbot.Recorder
	stats   StatsStore
	cookies sessions.Store
}

type newQuizRequest struct {
	User    string   `json:"user"`
	Subject string   `json:"subject"`
	Grade   string   `json:"grade"`
	Unit    string   `json:"unit"`
	Types   []string `json:"types"`
	Count   int      `json:"count"`
}

type answerRequest struct {
	Session string `json:"session"`
	Answer  string `json:"answer"`
}

type answerResponse struct {
	Correct       bool              `json:"correct"`
	Ungraded      bool              `json:"ungraded"`
	Fallback      bool              `json:"fallback"`
	Explanation   string            `json:"explanation"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
	NextQuestion  *quizbot.Question `json:"next_question,omitempty"`
	Progress      *quizbot.Progress `json:"progress,omitempty"`
	Completed     bool              `json:"completed,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/quiz", func(r chi.Router) {
			r.Post("/new", s.handleNewQuiz)
			r.Post("/answer", s.handleAnswer)
			r.Get("/{session}", s.handleCurrent)
			r.Post("/{session}/regenerate", s.handleRegenerate)
		})
		r.Get("/stats", s.handleStats)
		r.Delete("/stats", s.handleDeleteStats)
		r.Delete("/stats/{user}", s.handleDeleteStats)
	})
	return r
}

func (s *Server) handleNewQuiz(w http.ResponseWriter, r *http.Request) {
	var body newQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	req := quizbot.GenerationRequest{
		Count: body.Count,
		Filters: quizbot.Filters{
			Subject: body.Subject,
			Grade:   body.Grade,
			Unit:    body.Unit,
		},
	}
	for _, t := range body.Types {
		req.Types = append(req.Types, quizbot.QuestionType(t))
	}

	start, err := s.engine.RequestQuiz(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	state := s.loadState(r)
	if user := strings.TrimSpace(body.User); user != "" {
		state.User = user
	}
	state.Session = start.Session
	s.saveState(w, r, state)

	writeJSON(w, http.StatusOK, start)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	state := s.loadState(r)
	handle := body.Session
	if handle == "" {
		handle = state.Session
	}
	if handle == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no quiz session", Kind: string(quizbot.KindInvalidRequest)})
		return
	}

	result, err := s.engine.SubmitAnswer(r.Context(), handle, body.Answer)
	if err != nil {
		writeError(w, err)
		return
	}

	if rec := result.Record(state.User); rec != nil && rec.User != "" && s.answers != nil {
		if err := s.answers.SaveAnswer(r.Context(), rec); err != nil {
			log.Printf("Failed to save answer for %s: %v", rec.User, err)
		}
	}

	resp := answerResponse{
		Correct:       result.Outcome.Correct(),
		Ungraded:      !result.Outcome.Graded(),
		Fallback:      result.Outcome.Fallback,
		Explanation:   result.Outcome.Explanation,
		CorrectAnswer: result.Outcome.CorrectAnswer,
		NextQuestion:  result.NextQuestion,
		Progress:      &result.Progress,
		Completed:     result.Completed,
	}
	if result.Completed && state.Session == handle {
		state.Session = ""
		s.saveState(w, r, state)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	start, err := s.engine.CurrentQuestion(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, start)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	start, err := s.engine.RegenerateQuiz(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, start)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.UnitStats(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, err)
		return
	}
	if stats == nil {
		stats = []quizbot.UnitStat{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"units": stats})
}

func (s *Server) handleDeleteStats(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	n, err := s.stats.DeleteAnswers(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("Deleted %d answer records (user=%q)", n, user)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) loadState(r *http.Request) cookieState {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		quizbot.VerboseLog("Ignoring unreadable cookie: %v", err)
		return cookieState{}
	}
	state, _ := sess.Values["state"].(cookieState)
	return state
}

func (s *Server) saveState(w http.ResponseWriter, r *http.Request, state cookieState) {
	sess, _ := s.cookies.Get(r, cookieName)
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	sess.Values["state"] = state
	if err := sess.Save(r, w); err != nil {
		log.Printf("Failed to save cookie: %v", err)
	}
}

// statusFor maps an engine error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, quizbot.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, quizbot.ErrServiceTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, quizbot.ErrGenerationFailed), errors.Is(err, quizbot.ErrBackendFailed):
		return http.StatusBadGateway
	case errors.Is(err, quizbot.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, quizbot.ErrStaleIndex), errors.Is(err, quizbot.ErrStaleVersion):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: string(quizbot.KindOf(err))}

	var qe *quizbot.Error
	if errors.As(err, &qe) && qe.Retryable() {
		resp.Retryable = true
		w.Header().Set("Retry-After", "5")
	}
	if status >= http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
