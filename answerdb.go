package quizbot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// AnswerRecord is one graded answer, appended once and never updated
type AnswerRecord struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Subject   string    `json:"subject"`
	Grade     string    `json:"grade"`
	Unit      string    `json:"unit"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Correct   bool      `json:"correct"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists graded answers
type Recorder interface {
	SaveAnswer(ctx context.Context, rec *AnswerRecord) error
}

// UnitStat is the tally of answers for one subject/grade/unit
type UnitStat struct {
	Subject string  `json:"subject"`
	Grade   string  `json:"grade"`
	Unit    string  `json:"unit"`
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	Rate    float64 `json:"rate"`
}

// AnswerDB stores answer records in sqlite
type AnswerDB struct {
	db *sql.DB
}

// OpenAnswerDB opens the database and creates its tables
func OpenAnswerDB(dbPath string) (*AnswerDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adb := &AnswerDB{db: db}
	if err := adb.CreateTables(); err != nil {
		db.Close()
		return nil, err
	}
	return adb, nil
}

// Close closes the database connection
func (adb *AnswerDB) Close() error {
	return adb.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (adb *AnswerDB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS answers (
			id TEXT PRIMARY KEY,
			user_name TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			grade TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			is_correct BOOLEAN NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_user ON answers (user_name)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_unit ON answers (subject, grade, unit)`,
	}

	for _, query := range queries {
		if _, err := adb.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// SaveAnswer appends a record, filling in its ID and timestamp when unset
func (adb *AnswerDB) SaveAnswer(ctx context.Context, rec *AnswerRecord) error {
	if rec.User == "" {
		return fmt.Errorf("answer record has no user")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := adb.db.ExecContext(ctx,
		"INSERT INTO answers (id, user_name, subject, grade, unit, question, answer, is_correct, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.User, rec.Subject, rec.Grade, rec.Unit, rec.Question, rec.Answer, rec.Correct, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// GetAnswers retrieves a user's answers, newest first, optionally limited by count
func (adb *AnswerDB) GetAnswers(ctx context.Context, user string, limit int) ([]AnswerRecord, error) {
	query := "SELECT id, user_name, subject, grade, unit, question, answer, is_correct, created_at FROM answers WHERE user_name = ? ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := adb.db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	defer rows.Close()

	var records []AnswerRecord
	for rows.Next() {
		var rec AnswerRecord
		err := rows.Scan(&rec.ID, &rec.User, &rec.Subject, &rec.Grade, &rec.Unit, &rec.Question, &rec.Answer, &rec.Correct, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return records, nil
}

// UnitStats tallies answers per subject/grade/unit; an empty user covers everyone
func (adb *AnswerDB) UnitStats(ctx context.Context, user string) ([]UnitStat, error) {
	query := `SELECT subject, grade, unit, COUNT(*), SUM(CASE WHEN is_correct THEN 1 ELSE 0 END)
		FROM answers`
	var args []any
	if user != "" {
		query += " WHERE user_name = ?"
		args = append(args, user)
	}
	query += " GROUP BY subject, grade, unit ORDER BY subject, grade, unit"

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get unit stats: %w", err)
	}
	defer rows.Close()

	var stats []UnitStat
	for rows.Next() {
		var st UnitStat
		if err := rows.Scan(&st.Subject, &st.Grade, &st.Unit, &st.Total, &st.Correct); err != nil {
			return nil, fmt.Errorf("failed to scan unit stat: %w", err)
		}
		if st.Total > 0 {
			st.Rate = float64(st.Correct) / float64(st.Total)
		}
		stats = append(stats, st)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit stats: %w", err)
	}

	return stats, nil
}

// DeleteAnswers removes one user's records, or everyone's when user is empty
func (adb *AnswerDB) DeleteAnswers(ctx context.Context, user string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if user == "" {
		res, err = adb.db.ExecContext(ctx, "DELETE FROM answers")
	} else {
		res, err = adb.db.ExecContext(ctx, "DELETE FROM answers WHERE user_name = ?", user)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete answers: %w", err)
	}
	return res.RowsAffected()
}
