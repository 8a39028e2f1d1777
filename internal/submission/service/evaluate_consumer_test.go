package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"jarcode/internal/common/mq"
	"jarcode/internal/judge"
	"jarcode/internal/submission/model"
	"jarcode/internal/submission/service"
	pkgerrors "jarcode/pkg/errors"
)

func newConsumerFixture(t *testing.T) (*evaluationFixture, *service.EvaluateConsumer) {
	t.Helper()
	fx := newEvaluationFixture(t, nil)
	consumer, err := service.NewEvaluateConsumer(fx.repo, fx.svc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return fx, consumer
}

func evaluateMessage(t *testing.T, submissionID int64) *mq.Message {
	t.Helper()
	body, err := json.Marshal(map[string]int64{"submission_id": submissionID})
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return mq.NewMessage(body)
}

func TestHandleMessageClaimsAndEvaluates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx, consumer := newConsumerFixture(t)

	submission := fx.repo.seed(7, 1, "code", model.StatusAccepted)
	fx.judge.setVerdict(judge.Result{Output: strPtr("ok"), Outcome: judge.OutcomePassed})

	if err := consumer.HandleMessage(ctx, evaluateMessage(t, submission.ID)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	evaluated, _ := fx.repo.GetByID(ctx, submission.ID)
	if evaluated.Status != model.StatusEvaluated {
		t.Fatalf("status = %s, want EVALUATED", evaluated.Status)
	}
	if fx.judge.callCount() != 1 {
		t.Fatalf("judge ran %d times, want 1", fx.judge.callCount())
	}
}

func TestHandleMessageDropsDuplicateJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx, consumer := newConsumerFixture(t)

	// Already past ACCEPTED: the claim fails, so the redelivery must commit
	// without running the judge again.
	submission := fx.repo.seed(7, 1, "code", model.StatusEvaluated)

	if err := consumer.HandleMessage(ctx, evaluateMessage(t, submission.ID)); err != nil {
		t.Fatalf("duplicate job must commit, got: %v", err)
	}
	if fx.judge.callCount() != 0 {
		t.Fatalf("judge ran %d times on a duplicate, want 0", fx.judge.callCount())
	}
}

func TestHandleMessageRetriesUnknownSubmission(t *testing.T) {
	t.Parallel()
	_, consumer := newConsumerFixture(t)

	err := consumer.HandleMessage(context.Background(), evaluateMessage(t, 404))
	if !pkgerrors.Is(err, pkgerrors.SubmissionNotFound) {
		t.Fatalf("error = %v, want SubmissionNotFound for requeue", err)
	}
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, consumer := newConsumerFixture(t)

	testCases := []struct {
		name string
		body []byte
	}{
		{name: "not json", body: []byte("{not json")},
		{name: "missing id", body: []byte(`{}`)},
		{name: "non-positive id", body: []byte(`{"submission_id":0}`)},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := consumer.HandleMessage(ctx, mq.NewMessage(tc.body))
			if !pkgerrors.Is(err, pkgerrors.InvalidParams) {
				t.Fatalf("error = %v, want InvalidParams", err)
			}
		})
	}
}

func TestHandleMessageCommitsAfterEvaluationFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx, consumer := newConsumerFixture(t)

	// The referenced problem does not exist, so Evaluate fails after the
	// claim. The job is still committed: a retry would fail the same way.
	submission := fx.repo.seed(7, 42, "code", model.StatusAccepted)

	if err := consumer.HandleMessage(ctx, evaluateMessage(t, submission.ID)); err != nil {
		t.Fatalf("attempted evaluation must commit, got: %v", err)
	}

	claimed, _ := fx.repo.GetByID(ctx, submission.ID)
	if claimed.Status != model.StatusEvaluating {
		t.Fatalf("status = %s, want EVALUATING after failed attempt", claimed.Status)
	}
}

func TestNewEvaluateConsumerValidation(t *testing.T) {
	t.Parallel()
	fx := newEvaluationFixture(t, nil)

	if _, err := service.NewEvaluateConsumer(nil, fx.svc); err == nil {
		t.Fatal("expected error for nil repository")
	}
	if _, err := service.NewEvaluateConsumer(fx.repo, nil); err == nil {
		t.Fatal("expected error for nil evaluation service")
	}
}
