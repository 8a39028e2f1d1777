package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	problemmodel "jarcode/internal/problem/model"
	"jarcode/internal/submission/model"
	"jarcode/internal/submission/service"
	pkgerrors "jarcode/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

type submitFixture struct {
	repo     *fakeSubmissionRepo
	problems *fakeProblemRepo
	rate     *fakeRateCache
	producer *fakeProducer
	store    *fakeObjectStorage
	status   *fakeStatusRepo
	svc      *service.SubmitService
}

func newSubmitFixture(t *testing.T, cfg service.SubmitServiceConfig) *submitFixture {
	t.Helper()

	fx := &submitFixture{
		repo: newFakeSubmissionRepo(),
		problems: newFakeProblemRepo(&problemmodel.Problem{
			ID:       1,
			Title:    "Two Sum",
			Language: problemmodel.LanguagePython,
			TestCode: "assert add(1, 2) == 3",
		}),
		rate:     newFakeRateCache(),
		producer: newFakeProducer(),
		store:    newFakeObjectStorage(),
		status:   newFakeStatusRepo(),
	}

	svc, err := service.NewSubmitService(&fakeDB{}, fx.repo, fx.problems,
		fx.rate, fx.producer, fx.store, fx.status, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fx.svc = svc
	return fx
}

func TestSubmitAcceptsAndEnqueues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{ArchiveBucket: "jarcode"})

	submission, err := fx.svc.Submit(ctx, 7, 1, "def add(a, b): return a + b")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submission.ID <= 0 {
		t.Fatal("submission id not assigned")
	}
	if submission.Status != model.StatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", submission.Status)
	}

	jobs := fx.producer.published(service.TopicEvaluate)
	if len(jobs) != 1 {
		t.Fatalf("published %d jobs, want 1", len(jobs))
	}
	var job struct {
		SubmissionID int64 `json:"submission_id"`
	}
	if err := json.Unmarshal(jobs[0].Body, &job); err != nil {
		t.Fatalf("job payload is not valid json: %v", err)
	}
	if job.SubmissionID != submission.ID {
		t.Fatalf("job submission_id = %d, want %d", job.SubmissionID, submission.ID)
	}

	mirrored, _ := fx.status.Get(ctx, submission.ID)
	if mirrored != model.StatusAccepted {
		t.Fatalf("mirrored status = %q, want ACCEPTED", mirrored)
	}
}

func TestSubmitArchivesCompressedSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{ArchiveBucket: "jarcode"})

	solution := "def add(a, b):\n    return a + b\n"
	submission, err := fx.svc.Submit(ctx, 7, 1, solution)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	key := fmt.Sprintf("jarcode/submissions/%d/solution.zst", submission.ID)
	compressed, ok := fx.store.objects[key]
	if !ok {
		t.Fatalf("archive object %s missing", key)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("create decoder: %v", err)
	}
	defer decoder.Close()
	decoded, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if string(decoded) != solution {
		t.Fatalf("archived source = %q, want original solution", decoded)
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{MaxCodeBytes: 16})

	testCases := []struct {
		name      string
		problemID int64
		solution  string
		wantCode  pkgerrors.ErrorCode
	}{
		{name: "empty solution", problemID: 1, solution: "", wantCode: pkgerrors.ValidationFailed},
		{name: "oversized solution", problemID: 1, solution: "x = 1\ny = 2\nz = x + y\n", wantCode: pkgerrors.CodeTooLarge},
		{name: "unknown problem", problemID: 404, solution: "x = 1", wantCode: pkgerrors.ProblemNotFound},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := fx.svc.Submit(ctx, 7, tc.problemID, tc.solution)
			if !pkgerrors.Is(err, tc.wantCode) {
				t.Fatalf("error = %v, want code %v", err, tc.wantCode)
			}
		})
	}

	if len(fx.producer.published(service.TopicEvaluate)) != 0 {
		t.Fatal("rejected submissions must not be enqueued")
	}
}

func TestSubmitRateLimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := fx.svc.Submit(ctx, 7, 1, "x = 1"); err != nil {
			t.Fatalf("submit %d failed: %v", i+1, err)
		}
	}

	_, err := fx.svc.Submit(ctx, 7, 1, "x = 1")
	if !pkgerrors.Is(err, pkgerrors.SubmitTooFrequently) {
		t.Fatalf("error = %v, want SubmitTooFrequently", err)
	}

	// The window is per user.
	if _, err := fx.svc.Submit(ctx, 8, 1, "x = 1"); err != nil {
		t.Fatalf("other user must not be throttled: %v", err)
	}
}

func TestSubmitPublishFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{})
	fx.producer.err = errors.New("broker unreachable")

	_, err := fx.svc.Submit(ctx, 7, 1, "x = 1")
	if !pkgerrors.Is(err, pkgerrors.EvaluationDispatchFailed) {
		t.Fatalf("error = %v, want EvaluationDispatchFailed", err)
	}
}

func TestGetForAuthorScopesByAuthor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{})

	submission := fx.repo.seed(7, 1, "code", model.StatusAccepted)

	got, err := fx.svc.GetForAuthor(ctx, 7, submission.ID)
	if err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if got.ID != submission.ID {
		t.Fatalf("got submission %d, want %d", got.ID, submission.ID)
	}

	// Another user sees not-found, not forbidden, so ids cannot be probed.
	_, err = fx.svc.GetForAuthor(ctx, 8, submission.ID)
	if !pkgerrors.Is(err, pkgerrors.SubmissionNotFound) {
		t.Fatalf("error = %v, want SubmissionNotFound", err)
	}
}

func TestLiveStatusPrefersMirrorWhileInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{})

	submission := fx.repo.seed(7, 1, "code", model.StatusAccepted)

	// The worker has mirrored EVALUATING but not yet committed the row.
	if err := fx.status.Set(ctx, submission.ID, model.StatusEvaluating); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	status, err := fx.svc.LiveStatus(ctx, 7, submission.ID)
	if err != nil {
		t.Fatalf("live status failed: %v", err)
	}
	if status != model.StatusEvaluating {
		t.Fatalf("status = %s, want mirror's EVALUATING", status)
	}
}

func TestLiveStatusIgnoresMirrorOnceEvaluated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{})

	submission := fx.repo.seed(7, 1, "code", model.StatusEvaluated)
	if err := fx.status.Set(ctx, submission.ID, model.StatusEvaluating); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	status, err := fx.svc.LiveStatus(ctx, 7, submission.ID)
	if err != nil {
		t.Fatalf("live status failed: %v", err)
	}
	if status != model.StatusEvaluated {
		t.Fatalf("status = %s, terminal row must win over a stale mirror", status)
	}
}

func TestLiveStatusRequiresOwnership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newSubmitFixture(t, service.SubmitServiceConfig{})

	submission := fx.repo.seed(7, 1, "code", model.StatusAccepted)

	_, err := fx.svc.LiveStatus(ctx, 8, submission.ID)
	if !pkgerrors.Is(err, pkgerrors.SubmissionNotFound) {
		t.Fatalf("error = %v, want SubmissionNotFound", err)
	}
}
