package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/fluentflow/internal/exam"
)

// DBTX is the subset of pgxpool.Pool the repositories need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrRunNotFound is returned when a rating targets a run that was never archived.
var ErrRunNotFound = errors.New("exam run not found")

// Run is one completed pass through a session.
type Run struct {
	RunID          uuid.UUID             `json:"run_id"`
	SessionID      string                `json:"session_id"`
	Difficulty     exam.Difficulty       `json:"difficulty"`
	Reason         exam.CompletionReason `json:"reason"`
	TotalQuestions int                   `json:"total_questions"`
	Summary        exam.Summary          `json:"summary"`
	CompletedAt    time.Time             `json:"completed_at"`
	Answers        []AnswerRow           `json:"answers,omitempty"`
}

// AnswerRow is an archived answer record with the rating given to it, 0 when unrated.
type AnswerRow struct {
	exam.AnswerRecord
	Rating int `json:"rating"`
}

const insertRunSQL = `INSERT INTO exam_runs
    (run_id, session_id, difficulty, reason, total_questions, answered, correct, skipped, correct_rate, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertAnswerSQL = `INSERT INTO exam_answers
    (run_id, sequence_id, question_text, user_answer, correct_answer, is_correct, skipped)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const upsertRatingSQL = `INSERT INTO exam_ratings (run_id, sequence_id, rating, updated_at)
SELECT $1, $2, $3, now() WHERE EXISTS (SELECT 1 FROM exam_runs WHERE run_id = $1)
ON CONFLICT (run_id, sequence_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at`

const listRunsSQL = `SELECT run_id, session_id, difficulty, reason, total_questions, answered, correct, skipped, correct_rate, completed_at
FROM exam_runs
WHERE session_id = $1
ORDER BY completed_at DESC
LIMIT $2`

const listAnswersSQL = `SELECT a.sequence_id, a.question_text, a.user_answer, a.correct_answer, a.is_correct, a.skipped, COALESCE(r.rating, 0)
FROM exam_answers a
LEFT JOIN exam_ratings r ON r.run_id = a.run_id AND r.sequence_id = a.sequence_id
WHERE a.run_id = $1
ORDER BY a.sequence_id`

// RunRepository persists completed sessions, their answers and ratings in Postgres.
type RunRepository struct {
	db DBTX
}

// NewRunRepository constructs a run repository.
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

// InsertRun writes the run row and every answer in one transaction.
func (r *RunRepository) InsertRun(ctx context.Context, run Run, records []exam.AnswerRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert run: %w", err)
	}

	runID := toPGUUID(run.RunID)
	if _, err := tx.Exec(ctx, insertRunSQL,
		runID,
		run.SessionID,
		string(run.Difficulty),
		string(run.Reason),
		int32(run.TotalQuestions),
		int32(run.Summary.Total),
		int32(run.Summary.Correct),
		int32(run.Summary.Skipped),
		run.Summary.CorrectRate,
		toTimestamptz(run.CompletedAt),
	); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	for _, rec := range records {
		if _, err := tx.Exec(ctx, insertAnswerSQL,
			runID,
			int32(rec.SequenceID),
			rec.QuestionText,
			rec.UserAnswer,
			rec.CorrectAnswer,
			rec.IsCorrect,
			rec.Skipped,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert answer %d of run %s: %w", rec.SequenceID, run.RunID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return nil
}

// UpsertRating stores the latest rating for a question of an archived run.
func (r *RunRepository) UpsertRating(ctx context.Context, runID uuid.UUID, sequenceID, rating int) error {
	tag, err := r.db.Exec(ctx, upsertRatingSQL, toPGUUID(runID), int32(sequenceID), int32(rating))
	if err != nil {
		return fmt.Errorf("upsert rating for run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ListRuns returns the most recent runs of a session, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, listRunsSQL, sessionID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id                                pgtype.UUID
			difficulty, reason                string
			total, answered, correct, skipped int32
			rate                              float64
			completedAt                       pgtype.Timestamptz
			run                               Run
		)
		if err := rows.Scan(&id, &run.SessionID, &difficulty, &reason, &total, &answered, &correct, &skipped, &rate, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.RunID = uuid.UUID(id.Bytes)
		run.Difficulty = exam.Difficulty(difficulty)
		run.Reason = exam.CompletionReason(reason)
		run.TotalQuestions = int(total)
		run.Summary = exam.Summary{
			Total:       int(answered),
			Correct:     int(correct),
			Incorrect:   int(answered - correct),
			Skipped:     int(skipped),
			CorrectRate: rate,
		}
		run.CompletedAt = completedAt.Time
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", sessionID, err)
	}
	return runs, nil
}

// ListAnswers returns the answers of a run in sequence order, with their ratings.
func (r *RunRepository) ListAnswers(ctx context.Context, runID uuid.UUID) ([]AnswerRow, error) {
	rows, err := r.db.Query(ctx, listAnswersSQL, toPGUUID(runID))
	if err != nil {
		return nil, fmt.Errorf("list answers for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []AnswerRow
	for rows.Next() {
		var (
			seq, rating int32
			row         AnswerRow
		)
		if err := rows.Scan(&seq, &row.QuestionText, &row.UserAnswer, &row.CorrectAnswer, &row.IsCorrect, &row.Skipped, &rating); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		row.SequenceID = int(seq)
		row.Rating = int(rating)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers for run %s: %w", runID, err)
	}
	return out, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		t = time.Now()
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}
