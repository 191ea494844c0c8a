package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/classroom-api/internal/models"
)

// DoubtRepository handles persistence of questions, answers and upvotes.
type DoubtRepository struct {
	db *sqlx.DB
}

// NewDoubtRepository constructs the repository.
func NewDoubtRepository(db *sqlx.DB) *DoubtRepository {
	return &DoubtRepository{db: db}
}

const questionColumns = `id, lecture_id, course_code, student_id, text, context, answered, important, upvotes, created_at`

// CreateQuestion persists a question together with its resource references
// in one transaction.
func (r *DoubtRepository) CreateQuestion(ctx context.Context, question *models.Question, resourceIDs []string) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin question tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuestion = `INSERT INTO questions (id, lecture_id, course_code, student_id, text, context, answered, important, upvotes, created_at)
        VALUES (:id, :lecture_id, :course_code, :student_id, :text, :context, :answered, :important, :upvotes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuestion, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}

	const insertRef = `INSERT INTO question_resources (question_id, resource_id) VALUES ($1, $2)`
	for _, resourceID := range resourceIDs {
		if _, err := tx.ExecContext(ctx, insertRef, question.ID, resourceID); err != nil {
			return fmt.Errorf("attach question resource: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question tx: %w", err)
	}
	return nil
}

// FindQuestionByID returns a question by its ID.
func (r *DoubtRepository) FindQuestionByID(ctx context.Context, id string) (*models.Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM questions WHERE id = $1`, questionColumns)
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	return &question, nil
}

// AddAnswer persists an answer record.
func (r *DoubtRepository) AddAnswer(ctx context.Context, answer *models.Answer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO answers (id, question_id, responder_id, responder_name, responder_role, content, kind, created_at)
        VALUES (:id, :question_id, :responder_id, :responder_name, :responder_role, :content, :kind, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	return nil
}

// MarkAnswered flips the answered flag. The conditional update fires only on
// the first answer; later answers leave the transition history untouched.
func (r *DoubtRepository) MarkAnswered(ctx context.Context, questionID string) (bool, error) {
	const query = `UPDATE questions SET answered = TRUE WHERE id = $1 AND answered = FALSE`
	res, err := r.db.ExecContext(ctx, query, questionID)
	if err != nil {
		return false, fmt.Errorf("mark question answered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count answered rows: %w", err)
	}
	return affected == 1, nil
}

// Upvote records a student's vote with set semantics and bumps the counter
// only on the first vote. Returns whether the vote counted.
func (r *DoubtRepository) Upvote(ctx context.Context, questionID, studentID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upvote tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertVote = `INSERT INTO question_upvotes (question_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	res, err := tx.ExecContext(ctx, insertVote, questionID, studentID)
	if err != nil {
		return false, fmt.Errorf("record upvote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count upvote rows: %w", err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	const bump = `UPDATE questions SET upvotes = upvotes + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, questionID); err != nil {
		return false, fmt.Errorf("bump upvote counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upvote tx: %w", err)
	}
	return true, nil
}

// SetImportant stores the importance flag.
func (r *DoubtRepository) SetImportant(ctx context.Context, questionID string, important bool) error {
	const query = `UPDATE questions SET important = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, questionID, important); err != nil {
		return fmt.Errorf("set question importance: %w", err)
	}
	return nil
}

// ListByCourse returns the course's questions with asker names and attached
// resource references, optionally filtered by answered state.
func (r *DoubtRepository) ListByCourse(ctx context.Context, courseCode string, answered *bool) ([]models.QuestionDetail, error) {
	query := `SELECT q.id, q.lecture_id, q.course_code, q.student_id, q.text, q.context, q.answered, q.important, q.upvotes, q.created_at,
        s.full_name AS student_name,
        ARRAY_REMOVE(ARRAY_AGG(qr.resource_id), NULL) AS resource_ids
        FROM questions q
        JOIN students s ON s.id = q.student_id
        LEFT JOIN question_resources qr ON qr.question_id = q.id
        WHERE q.course_code = $1`
	args := []interface{}{courseCode}
	if answered != nil {
		query += fmt.Sprintf(" AND q.answered = $%d", len(args)+1)
		args = append(args, *answered)
	}
	query += " GROUP BY q.id, s.full_name ORDER BY q.created_at DESC"

	var questions []models.QuestionDetail
	if err := r.db.SelectContext(ctx, &questions, query, args...); err != nil {
		return nil, fmt.Errorf("list course questions: %w", err)
	}
	return questions, nil
}

// ListAnswers returns a question's answers in attachment order.
func (r *DoubtRepository) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	const query = `SELECT id, question_id, responder_id, responder_name, responder_role, content, kind, created_at
        FROM answers WHERE question_id = $1 ORDER BY created_at`
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, questionID); err != nil {
		return nil, fmt.Errorf("list question answers: %w", err)
	}
	return answers, nil
}

// ListAnswersByCourse returns every answer attached to the course's
// questions, in attachment order.
func (r *DoubtRepository) ListAnswersByCourse(ctx context.Context, courseCode string) ([]models.Answer, error) {
	const query = `SELECT a.id, a.question_id, a.responder_id, a.responder_name, a.responder_role, a.content, a.kind, a.created_at
        FROM answers a
        JOIN questions q ON q.id = a.question_id
        WHERE q.course_code = $1
        ORDER BY a.created_at`
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, courseCode); err != nil {
		return nil, fmt.Errorf("list course answers: %w", err)
	}
	return answers, nil
}
