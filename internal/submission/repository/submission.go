package repository

import (
	"context"
	"database/sql"
	"errors"

	"jarcode/internal/common/db"
	"jarcode/internal/submission/model"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository persists submissions and their one-to-one results.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (int64, error)

	// GetByID loads a submission with its result, when one exists.
	GetByID(ctx context.Context, submissionID int64) (*model.Submission, error)

	// ListByAuthor returns the author's submissions for one problem,
	// newest first, results included.
	ListByAuthor(ctx context.Context, authorID, problemID int64, limit int) ([]*model.Submission, error)

	// ClaimEvaluating performs the guarded ACCEPTED → EVALUATING transition
	// and reports whether this caller won the claim. A false return with no
	// error means another worker already claimed or finished the submission.
	ClaimEvaluating(ctx context.Context, tx db.Transaction, submissionID int64) (bool, error)

	// MarkEvaluated sets the terminal status. It is deliberately not
	// guarded: re-evaluation of an already EVALUATED submission must
	// succeed so the upsert's second-write-wins semantics hold.
	MarkEvaluated(ctx context.Context, tx db.Transaction, submissionID int64) error

	// UpsertResult writes the verdict keyed by submission id. At most one
	// result row exists per submission; a second write replaces the first.
	UpsertResult(ctx context.Context, tx db.Transaction, result *model.Result) error

	// AttachEvaluation stores the advisory AI assessment on an existing result.
	AttachEvaluation(ctx context.Context, tx db.Transaction, submissionID int64, evaluation string) error
}

type MySQLSubmissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (int64, error) {
	if submission == nil {
		return 0, errors.New("submission is nil")
	}
	if submission.Status == "" {
		submission.Status = model.StatusAccepted
	}

	query := "INSERT INTO submissions (author_id, problem_id, solution, status) VALUES (?, ?, ?, ?)"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		submission.AuthorID, submission.ProblemID, submission.Solution, submission.Status)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	submission.ID = id
	return id, nil
}

const submissionColumns = `s.id, s.author_id, s.problem_id, s.solution, s.status, s.created_at,
	r.id, r.output, r.outcome, r.ai_evaluation`

func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, submissionID int64) (*model.Submission, error) {
	query := "SELECT " + submissionColumns + `
		FROM submissions s
		LEFT JOIN results r ON r.submission_id = s.id
		WHERE s.id = ?`
	submission, err := scanSubmission(r.db.QueryRow(ctx, query, submissionID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

func (r *MySQLSubmissionRepository) ListByAuthor(ctx context.Context, authorID, problemID int64, limit int) ([]*model.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := "SELECT " + submissionColumns + `
		FROM submissions s
		LEFT JOIN results r ON r.submission_id = s.id
		WHERE s.author_id = ? AND s.problem_id = ?
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?`
	rows, err := r.db.Query(ctx, query, authorID, problemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]*model.Submission, 0, limit)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

func (r *MySQLSubmissionRepository) ClaimEvaluating(ctx context.Context, tx db.Transaction, submissionID int64) (bool, error) {
	query := "UPDATE submissions SET status = ? WHERE id = ? AND status = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		model.StatusEvaluating, submissionID, model.StatusAccepted)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *MySQLSubmissionRepository) MarkEvaluated(ctx context.Context, tx db.Transaction, submissionID int64) error {
	query := "UPDATE submissions SET status = ? WHERE id = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, model.StatusEvaluated, submissionID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// MySQL reports zero affected rows when the value is unchanged,
		// which is exactly the re-evaluation case; only a missing row is
		// an error.
		exists, err := r.exists(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrSubmissionNotFound
		}
	}
	return nil
}

func (r *MySQLSubmissionRepository) UpsertResult(ctx context.Context, tx db.Transaction, res *model.Result) error {
	if res == nil {
		return errors.New("result is nil")
	}

	query := `INSERT INTO results (submission_id, output, outcome) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE output = VALUES(output), outcome = VALUES(outcome)`
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query, res.SubmissionID, res.Output, res.Outcome)
	return err
}

func (r *MySQLSubmissionRepository) AttachEvaluation(ctx context.Context, tx db.Transaction, submissionID int64, evaluation string) error {
	query := "UPDATE results SET ai_evaluation = ? WHERE submission_id = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, evaluation, submissionID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (r *MySQLSubmissionRepository) exists(ctx context.Context, tx db.Transaction, submissionID int64) (bool, error) {
	var id int64
	err := db.GetQuerier(r.db, tx).QueryRow(ctx, "SELECT id FROM submissions WHERE id = ?", submissionID).Scan(&id)
	if err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scannable) (*model.Submission, error) {
	submission := &model.Submission{}
	var (
		resultID     sql.NullInt64
		output       sql.NullString
		outcome      sql.NullString
		aiEvaluation sql.NullString
	)
	err := row.Scan(&submission.ID, &submission.AuthorID, &submission.ProblemID,
		&submission.Solution, &submission.Status, &submission.CreatedAt,
		&resultID, &output, &outcome, &aiEvaluation)
	if err != nil {
		return nil, err
	}

	if resultID.Valid {
		result := &model.Result{
			ID:           resultID.Int64,
			SubmissionID: submission.ID,
			Output:       output.String,
			Outcome:      outcome.String,
		}
		if aiEvaluation.Valid {
			evaluation := aiEvaluation.String
			result.AIEvaluation = &evaluation
		}
		submission.Result = result
	}
	return submission, nil
}
