package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"jarcode/internal/common/db"
	"jarcode/internal/common/mq"
	"jarcode/internal/common/storage"
	"jarcode/internal/enrich"
	"jarcode/internal/judge"
	problemmodel "jarcode/internal/problem/model"
	problemrepo "jarcode/internal/problem/repository"
	"jarcode/internal/submission/model"
	"jarcode/internal/submission/repository"
)

// fakeDB satisfies db.Database for services that only need Transaction.
type fakeDB struct{}

func (f *fakeDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return nil
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return fn(nil)
}

func (f *fakeDB) BeginTx(ctx context.Context, opts *db.TxOptions) (db.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	nextID      int64
	submissions map[int64]*model.Submission
	results     map[int64]*model.Result
	claims      int
	upserts     int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		submissions: make(map[int64]*model.Submission),
		results:     make(map[int64]*model.Result),
	}
}

func (f *fakeSubmissionRepo) seed(authorID, problemID int64, solution, status string) *model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	submission := &model.Submission{
		ID:        f.nextID,
		AuthorID:  authorID,
		ProblemID: problemID,
		Solution:  solution,
		Status:    status,
		CreatedAt: time.Now(),
	}
	f.submissions[submission.ID] = submission
	return submission
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	submission.ID = f.nextID
	submission.CreatedAt = time.Now()
	stored := *submission
	f.submissions[submission.ID] = &stored
	return submission.ID, nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, submissionID int64) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.submissions[submissionID]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	submission := *stored
	if result, ok := f.results[submissionID]; ok {
		copied := *result
		submission.Result = &copied
	}
	return &submission, nil
}

func (f *fakeSubmissionRepo) ListByAuthor(ctx context.Context, authorID, problemID int64, limit int) ([]*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Submission
	for id := f.nextID; id > 0 && len(out) < limit; id-- {
		stored, ok := f.submissions[id]
		if !ok || stored.AuthorID != authorID || stored.ProblemID != problemID {
			continue
		}
		submission := *stored
		if result, ok := f.results[id]; ok {
			copied := *result
			submission.Result = &copied
		}
		out = append(out, &submission)
	}
	return out, nil
}

func (f *fakeSubmissionRepo) ClaimEvaluating(ctx context.Context, tx db.Transaction, submissionID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.submissions[submissionID]
	if !ok || stored.Status != model.StatusAccepted {
		return false, nil
	}
	stored.Status = model.StatusEvaluating
	f.claims++
	return true, nil
}

func (f *fakeSubmissionRepo) MarkEvaluated(ctx context.Context, tx db.Transaction, submissionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.submissions[submissionID]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	stored.Status = model.StatusEvaluated
	return nil
}

func (f *fakeSubmissionRepo) UpsertResult(ctx context.Context, tx db.Transaction, result *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	stored := *result
	if existing, ok := f.results[result.SubmissionID]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = int64(len(f.results) + 1)
	}
	f.results[result.SubmissionID] = &stored
	return nil
}

func (f *fakeSubmissionRepo) AttachEvaluation(ctx context.Context, tx db.Transaction, submissionID int64, evaluation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.results[submissionID]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	result.AIEvaluation = &evaluation
	return nil
}

func (f *fakeSubmissionRepo) resultCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type fakeProblemRepo struct {
	problems map[int64]*problemmodel.Problem
}

func newFakeProblemRepo(problems ...*problemmodel.Problem) *fakeProblemRepo {
	repo := &fakeProblemRepo{problems: make(map[int64]*problemmodel.Problem)}
	for _, p := range problems {
		repo.problems[p.ID] = p
	}
	return repo
}

func (f *fakeProblemRepo) GetByID(ctx context.Context, problemID int64) (*problemmodel.Problem, error) {
	p, ok := f.problems[problemID]
	if !ok {
		return nil, problemrepo.ErrProblemNotFound
	}
	return p, nil
}

func (f *fakeProblemRepo) List(ctx context.Context, limit int) ([]*problemmodel.Problem, error) {
	out := make([]*problemmodel.Problem, 0, len(f.problems))
	for _, p := range f.problems {
		out = append(out, p)
	}
	return out, nil
}

// fakeJudge returns scripted verdicts and records invocations.
type fakeJudge struct {
	mu      sync.Mutex
	verdict judge.Result
	calls   int
}

func (f *fakeJudge) Run(ctx context.Context, solutionCode, testCode string, timeout time.Duration) judge.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.verdict
}

func (f *fakeJudge) setVerdict(v judge.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdict = v
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu       sync.Mutex
	payloads map[int64][][]byte
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{payloads: make(map[int64][][]byte)}
}

func (f *fakeNotifier) Publish(userID int64, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[userID] = append(f.payloads[userID], payload)
	return 1
}

func (f *fakeNotifier) published(userID int64) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[userID]
}

// fakeEvaluator scripts the enrichment text.
type fakeEvaluator struct {
	text  string
	calls int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, input enrich.Input) string {
	f.calls++
	if f.text == "" {
		return enrich.FallbackEvaluation
	}
	return f.text
}

type fakeStatusRepo struct {
	mu       sync.Mutex
	statuses map[int64][]string
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{statuses: make(map[int64][]string)}
}

func (f *fakeStatusRepo) Set(ctx context.Context, submissionID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[submissionID] = append(f.statuses[submissionID], status)
	return nil
}

func (f *fakeStatusRepo) Get(ctx context.Context, submissionID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.statuses[submissionID]
	if len(history) == 0 {
		return "", nil
	}
	return history[len(history)-1], nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages map[string][]*mq.Message
	err      error
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{messages: make(map[string][]*mq.Message)}
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages[topic] = append(f.messages[topic], message)
	return nil
}

func (f *fakeProducer) published(topic string) []*mq.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[topic]
}

type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+objectKey] = data
	return nil
}

func (f *fakeObjectStorage) GetObject(ctx context.Context, bucket, objectKey string) (storage.ObjectReader, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeObjectStorage) StatObject(ctx context.Context, bucket, objectKey string) (storage.ObjectStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+objectKey]
	if !ok {
		return storage.ObjectStat{}, errors.New("object not found")
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

type fakeRateCache struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateCache() *fakeRateCache {
	return &fakeRateCache{counts: make(map[string]int64)}
}

func (f *fakeRateCache) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (f *fakeRateCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (f *fakeRateCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeRateCache) Del(ctx context.Context, keys ...string) error { return nil }

func (f *fakeRateCache) Exists(ctx context.Context, keys ...string) (int64, error) { return 0, nil }

func (f *fakeRateCache) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (f *fakeRateCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}

func (f *fakeRateCache) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}
