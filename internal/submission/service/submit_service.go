package service

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"jarcode/internal/common/cache"
	"jarcode/internal/common/db"
	"jarcode/internal/common/mq"
	"jarcode/internal/common/storage"
	problemrepo "jarcode/internal/problem/repository"
	"jarcode/internal/submission/model"
	"jarcode/internal/submission/repository"
	pkgerrors "jarcode/pkg/errors"
	"jarcode/pkg/utils/logger"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	defaultMaxCodeBytes   = 128 << 10
	defaultRateLimit      = 10
	defaultRateWindow     = time.Minute
	defaultArchivePrefix  = "submissions"
	rateLimitKeyPrefix    = "submit:rate:"
	archiveContentType    = "application/zstd"
	defaultPublishTimeout = 5 * time.Second
)

// SubmitServiceConfig holds configuration for SubmitService.
type SubmitServiceConfig struct {
	Topic        string
	MaxCodeBytes int

	// RateLimit submissions per RateWindow per user; 0 keeps the default.
	RateLimit  int
	RateWindow time.Duration

	// ArchiveBucket enables zstd-compressed source archival when non-empty.
	ArchiveBucket    string
	ArchiveKeyPrefix string
}

// SubmitService accepts new submissions: validate, persist as ACCEPTED,
// archive the source, and enqueue the evaluation job. It never blocks on the
// evaluation itself.
type SubmitService struct {
	database    db.Database
	submissions repository.SubmissionRepository
	problems    problemrepo.ProblemRepository
	rateCache   cache.BasicOps
	producer    mq.Producer
	store       storage.ObjectStorage
	status      repository.StatusRepository
	config      SubmitServiceConfig
	encoder     *zstd.Encoder
}

func NewSubmitService(
	database db.Database,
	submissions repository.SubmissionRepository,
	problems problemrepo.ProblemRepository,
	rateCache cache.BasicOps,
	producer mq.Producer,
	store storage.ObjectStorage,
	status repository.StatusRepository,
	cfg SubmitServiceConfig,
) (*SubmitService, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if producer == nil {
		return nil, fmt.Errorf("message producer is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = TopicEvaluate
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.ArchiveKeyPrefix == "" {
		cfg.ArchiveKeyPrefix = defaultArchivePrefix
	}

	var encoder *zstd.Encoder
	if store != nil && cfg.ArchiveBucket != "" {
		var err error
		encoder, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder failed: %w", err)
		}
	}

	return &SubmitService{
		database:    database,
		submissions: submissions,
		problems:    problems,
		rateCache:   rateCache,
		producer:    producer,
		store:       store,
		status:      status,
		config:      cfg,
		encoder:     encoder,
	}, nil
}

// Submit validates and accepts a new submission, then enqueues its
// evaluation. The returned submission is in status ACCEPTED.
func (s *SubmitService) Submit(ctx context.Context, authorID, problemID int64, solution string) (*model.Submission, error) {
	if solution == "" {
		return nil, pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("solution is empty")
	}
	if len(solution) > s.config.MaxCodeBytes {
		return nil, pkgerrors.New(pkgerrors.CodeTooLarge).
			WithMessagef("solution exceeds %d bytes", s.config.MaxCodeBytes)
	}

	if _, err := s.problems.GetByID(ctx, problemID); err != nil {
		if stderrors.Is(err, problemrepo.ErrProblemNotFound) {
			return nil, pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	if err := s.checkRateLimit(ctx, authorID); err != nil {
		return nil, err
	}

	submission := &model.Submission{
		AuthorID:  authorID,
		ProblemID: problemID,
		Solution:  solution,
		Status:    model.StatusAccepted,
	}
	err := s.database.Transaction(ctx, func(tx db.Transaction) error {
		_, err := s.submissions.Create(ctx, tx, submission)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.SubmissionCreateFailed)
	}

	s.archiveSource(ctx, submission)

	if err := s.enqueue(ctx, submission.ID); err != nil {
		return nil, err
	}

	s.mirrorStatus(ctx, submission.ID, submission.Status)

	// Reload so created_at reflects the database clock.
	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return submission, nil
	}
	return created, nil
}

func (s *SubmitService) checkRateLimit(ctx context.Context, authorID int64) error {
	if s.rateCache == nil {
		return nil
	}

	key := rateLimitKeyPrefix + strconv.FormatInt(authorID, 10)
	count, err := s.rateCache.Incr(ctx, key)
	if err != nil {
		// The limiter is protective, not load-bearing; a cache outage must
		// not reject submissions.
		logger.WithContext(ctx).Warn("rate limit check failed", zap.Error(err))
		return nil
	}
	if count == 1 {
		_ = s.rateCache.Expire(ctx, key, s.config.RateWindow)
	}
	if count > int64(s.config.RateLimit) {
		return pkgerrors.New(pkgerrors.SubmitTooFrequently)
	}
	return nil
}

func (s *SubmitService) enqueue(ctx context.Context, submissionID int64) error {
	payload, err := json.Marshal(evaluateJob{SubmissionID: submissionID})
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.QueuePublishFailed)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	if err := s.producer.Publish(publishCtx, s.config.Topic, mq.NewMessage(payload)); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.EvaluationDispatchFailed)
	}
	return nil
}

// archiveSource stores a zstd-compressed copy of the solution in object
// storage. Archival is best-effort; the database row is authoritative.
func (s *SubmitService) archiveSource(ctx context.Context, submission *model.Submission) {
	if s.encoder == nil {
		return
	}

	compressed := s.encoder.EncodeAll([]byte(submission.Solution), nil)
	key := fmt.Sprintf("%s/%d/solution.zst", s.config.ArchiveKeyPrefix, submission.ID)
	err := s.store.PutObject(ctx, s.config.ArchiveBucket, key,
		bytes.NewReader(compressed), int64(len(compressed)), archiveContentType)
	if err != nil {
		logger.WithContext(ctx).Warn("archive source failed",
			zap.Int64("submission_id", submission.ID), zap.Error(err))
	}
}

func (s *SubmitService) mirrorStatus(ctx context.Context, submissionID int64, status string) {
	if s.status == nil {
		return
	}
	if err := s.status.Set(ctx, submissionID, status); err != nil {
		logger.WithContext(ctx).Warn("mirror status failed",
			zap.Int64("submission_id", submissionID), zap.Error(err))
	}
}

// GetForAuthor loads one submission, scoped to its author. Other users'
// submissions are reported as missing, not forbidden.
func (s *SubmitService) GetForAuthor(ctx context.Context, authorID, submissionID int64) (*model.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, pkgerrors.New(pkgerrors.SubmissionNotFound)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	if submission.AuthorID != authorID {
		return nil, pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	return submission, nil
}

// ListForAuthor returns the caller's submission history for one problem,
// newest first.
func (s *SubmitService) ListForAuthor(ctx context.Context, authorID, problemID int64, limit int) ([]*model.Submission, error) {
	submissions, err := s.submissions.ListByAuthor(ctx, authorID, problemID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	return submissions, nil
}

// LiveStatus returns the current status, preferring the Redis mirror while a
// run is still in flight. The mirror may be a step ahead of the row the
// worker is about to commit.
func (s *SubmitService) LiveStatus(ctx context.Context, authorID, submissionID int64) (string, error) {
	submission, err := s.GetForAuthor(ctx, authorID, submissionID)
	if err != nil {
		return "", err
	}
	if submission.Status != model.StatusEvaluated && s.status != nil {
		if status, err := s.status.Get(ctx, submissionID); err == nil && status != "" {
			return status, nil
		}
	}
	return submission.Status, nil
}
