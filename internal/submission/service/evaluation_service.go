package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"jarcode/internal/common/db"
	"jarcode/internal/enrich"
	"jarcode/internal/judge"
	problemmodel "jarcode/internal/problem/model"
	problemrepo "jarcode/internal/problem/repository"
	"jarcode/internal/submission/model"
	"jarcode/internal/submission/repository"
	pkgerrors "jarcode/pkg/errors"
	"jarcode/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultEnrichTimeout = 60 * time.Second

// Notifier delivers one payload to a user's live connections; returns the
// delivered count. Implemented by notify.Hub.
type Notifier interface {
	Publish(userID int64, payload []byte) int
}

// EvaluationServiceConfig holds configuration for EvaluationService.
type EvaluationServiceConfig struct {
	// Registry maps every supported language to its judge and timeout. An
	// incomplete registry fails construction, not individual requests.
	Registry judge.Registry

	// EnrichTimeout bounds the advisory AI call.
	EnrichTimeout time.Duration
}

// EvaluationService is the orchestrator driving one submission from claimed
// to EVALUATED: run the judge, upsert the result, advance the status, attach
// the advisory AI assessment, and notify the author.
type EvaluationService struct {
	database    db.Database
	submissions repository.SubmissionRepository
	problems    problemrepo.ProblemRepository
	notifier    Notifier
	evaluator   enrich.Evaluator
	status      repository.StatusRepository
	config      EvaluationServiceConfig
}

// NewEvaluationService validates the registry up front: a language mapped to
// a nil judge or a non-positive timeout is a configuration error.
func NewEvaluationService(
	database db.Database,
	submissions repository.SubmissionRepository,
	problems problemrepo.ProblemRepository,
	notifier Notifier,
	evaluator enrich.Evaluator,
	status repository.StatusRepository,
	cfg EvaluationServiceConfig,
) (*EvaluationService, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if len(cfg.Registry) == 0 {
		return nil, fmt.Errorf("judge registry is empty")
	}
	for lang, entry := range cfg.Registry {
		if entry.Judge == nil {
			return nil, fmt.Errorf("language %s has no judge", lang)
		}
		if entry.Timeout <= 0 {
			return nil, fmt.Errorf("language %s has non-positive timeout", lang)
		}
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = defaultEnrichTimeout
	}

	return &EvaluationService{
		database:    database,
		submissions: submissions,
		problems:    problems,
		notifier:    notifier,
		evaluator:   evaluator,
		status:      status,
		config:      cfg,
	}, nil
}

// Evaluate drives one claimed submission to its terminal state. Judge
// failures never surface as errors; only missing data or persistence
// failures do. Calling Evaluate twice for the same id is safe: the second
// run's result replaces the first.
func (s *EvaluationService) Evaluate(ctx context.Context, submissionID int64) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			return pkgerrors.New(pkgerrors.SubmissionNotFound).
				WithMessagef("submission %d not found", submissionID)
		}
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	problem, err := s.problems.GetByID(ctx, submission.ProblemID)
	if err != nil {
		if stderrors.Is(err, problemrepo.ErrProblemNotFound) {
			return pkgerrors.New(pkgerrors.ProblemNotFound).
				WithMessagef("problem %d not found", submission.ProblemID)
		}
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	entry, ok := s.config.Registry.Lookup(problem.Language)
	if !ok {
		return pkgerrors.New(pkgerrors.LanguageNotSupported).
			WithMessagef("no judge registered for language %s", problem.Language)
	}

	s.mirrorStatus(ctx, submissionID, model.StatusEvaluating)

	verdict := entry.Judge.Run(ctx, submission.Solution, problem.TestCode, entry.Timeout)

	// Output defaults to the empty string when the run produced none.
	output := ""
	if verdict.Output != nil {
		output = *verdict.Output
	}

	err = s.database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.submissions.UpsertResult(ctx, tx, &model.Result{
			SubmissionID: submissionID,
			Output:       output,
			Outcome:      string(verdict.Outcome),
		}); err != nil {
			return err
		}
		return s.submissions.MarkEvaluated(ctx, tx, submissionID)
	})
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ResultWriteFailed)
	}

	s.mirrorStatus(ctx, submissionID, model.StatusEvaluated)

	// Reload so the notification reflects the final persisted state.
	evaluated, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	s.enrichResult(ctx, evaluated, problem)
	s.notifyAuthor(ctx, evaluated)
	return nil
}

// enrichResult attaches the advisory AI assessment. It runs after the status
// transition on purpose: the submission is done the moment the outcome is
// known, and nothing here may fail the pipeline.
func (s *EvaluationService) enrichResult(ctx context.Context, submission *model.Submission, problem *problemmodel.Problem) {
	if s.evaluator == nil || submission.Result == nil {
		return
	}

	enrichCtx, cancel := context.WithTimeout(ctx, s.config.EnrichTimeout)
	defer cancel()

	evaluation := s.evaluator.Evaluate(enrichCtx, enrich.Input{
		ProblemTitle:       problem.Title,
		ProblemDescription: problem.Description,
		ProblemLanguage:    problem.Language,
		SolutionCode:       submission.Solution,
		TestCode:           problem.TestCode,
		Outcome:            submission.Result.Outcome,
		Output:             submission.Result.Output,
	})

	if err := s.submissions.AttachEvaluation(ctx, nil, submission.ID, evaluation); err != nil {
		logger.WithContext(ctx).Warn("attach ai evaluation failed",
			zap.Int64("submission_id", submission.ID), zap.Error(err))
		return
	}
	submission.Result.AIEvaluation = &evaluation
}

// notifyAuthor publishes the full submission to the author's group. Delivery
// is fire-and-forget: no live connection means the message is dropped.
func (s *EvaluationService) notifyAuthor(ctx context.Context, submission *model.Submission) {
	if s.notifier == nil {
		return
	}

	payload, err := json.Marshal(submission)
	if err != nil {
		logger.WithContext(ctx).Error("serialize submission for notification failed",
			zap.Int64("submission_id", submission.ID), zap.Error(err))
		return
	}
	s.notifier.Publish(submission.AuthorID, payload)
}

func (s *EvaluationService) mirrorStatus(ctx context.Context, submissionID int64, status string) {
	if s.status == nil {
		return
	}
	if err := s.status.Set(ctx, submissionID, status); err != nil {
		logger.WithContext(ctx).Warn("mirror status failed",
			zap.Int64("submission_id", submissionID), zap.Error(err))
	}
}
