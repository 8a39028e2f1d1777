package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"jarcode/internal/common/mq"
	"jarcode/internal/submission/repository"
	pkgerrors "jarcode/pkg/errors"
	"jarcode/pkg/utils/contextkey"
	"jarcode/pkg/utils/logger"

	"go.uber.org/zap"
)

// EvaluateConsumer bridges the durable queue to the orchestrator. Delivery
// is at-least-once; the guarded status claim is what keeps a redelivered job
// from evaluating the same submission twice.
type EvaluateConsumer struct {
	submissions repository.SubmissionRepository
	evaluation  *EvaluationService
}

func NewEvaluateConsumer(submissions repository.SubmissionRepository, evaluation *EvaluationService) (*EvaluateConsumer, error) {
	if submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if evaluation == nil {
		return nil, fmt.Errorf("evaluation service is required")
	}
	return &EvaluateConsumer{submissions: submissions, evaluation: evaluation}, nil
}

// HandleMessage processes one evaluation job. Returning an error requeues
// the message (and eventually dead-letters it); returning nil commits it.
// Once the evaluation has been attempted the message is always committed —
// orchestrator outcomes are terminal, a redelivery would not improve them.
func (c *EvaluateConsumer) HandleMessage(ctx context.Context, message *mq.Message) error {
	var job evaluateJob
	if err := json.Unmarshal(message.Body, &job); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.InvalidParams).WithMessage("malformed evaluate job")
	}
	if job.SubmissionID <= 0 {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("evaluate job without submission id")
	}

	ctx = context.WithValue(ctx, contextkey.SubmissionID, job.SubmissionID)
	log := logger.WithContext(ctx)

	submission, err := c.submissions.GetByID(ctx, job.SubmissionID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			// The producer may have committed after publishing; retry
			// until the row is visible or the retry budget dead-letters
			// the job.
			return pkgerrors.New(pkgerrors.SubmissionNotFound).
				WithMessagef("submission %d not visible yet", job.SubmissionID)
		}
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	claimed, err := c.submissions.ClaimEvaluating(ctx, nil, job.SubmissionID)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	if !claimed {
		log.Info("submission already claimed, dropping duplicate job",
			zap.String("status", submission.Status))
		return nil
	}

	if err := c.evaluation.Evaluate(ctx, job.SubmissionID); err != nil {
		log.Error("evaluation failed", zap.Error(err))
	}
	return nil
}
