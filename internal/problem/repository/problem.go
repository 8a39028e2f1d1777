package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"jarcode/internal/common/cache"
	"jarcode/internal/common/db"
	"jarcode/internal/problem/model"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = 5 * time.Minute
	problemKeyPrefix       = "problem:"
)

var ErrProblemNotFound = errors.New("problem not found")

// ProblemRepository reads problems. The pipeline never writes them; problem
// authoring lives in a separate system sharing the same database.
type ProblemRepository interface {
	GetByID(ctx context.Context, problemID int64) (*model.Problem, error)
	List(ctx context.Context, limit int) ([]*model.Problem, error)
}

type MySQLProblemRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewProblemRepository(database db.Database, cacheClient cache.Cache) ProblemRepository {
	return NewProblemRepositoryWithTTL(database, cacheClient, defaultProblemTTL, defaultProblemEmptyTTL)
}

func NewProblemRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) ProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemEmptyTTL
	}
	return &MySQLProblemRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

func (r *MySQLProblemRepository) GetByID(ctx context.Context, problemID int64) (*model.Problem, error) {
	if problemID <= 0 {
		return nil, ErrProblemNotFound
	}
	if r.cache == nil {
		return r.getByIDFromDB(ctx, problemID)
	}

	problem, err := cache.GetWithCached[*model.Problem](
		ctx,
		r.cache,
		problemKey(problemID),
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(p *model.Problem) bool { return p == nil },
		marshalProblem,
		unmarshalProblem,
		func(ctx context.Context) (*model.Problem, error) {
			p, err := r.getByIDFromDB(ctx, problemID)
			if err != nil {
				if errors.Is(err, ErrProblemNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return p, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if problem == nil {
		return nil, ErrProblemNotFound
	}
	return problem, nil
}

func (r *MySQLProblemRepository) List(ctx context.Context, limit int) ([]*model.Problem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id, author_id, title, description, language, difficulty, starting_code, test_code, created_at
		FROM problems ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := make([]*model.Problem, 0, limit)
	for rows.Next() {
		p := &model.Problem{}
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Description,
			&p.Language, &p.Difficulty, &p.StartingCode, &p.TestCode, &p.CreatedAt); err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func (r *MySQLProblemRepository) getByIDFromDB(ctx context.Context, problemID int64) (*model.Problem, error) {
	query := `SELECT id, author_id, title, description, language, difficulty, starting_code, test_code, created_at
		FROM problems WHERE id = ?`
	p := &model.Problem{}
	err := r.db.QueryRow(ctx, query, problemID).Scan(&p.ID, &p.AuthorID, &p.Title, &p.Description,
		&p.Language, &p.Difficulty, &p.StartingCode, &p.TestCode, &p.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	return p, nil
}

func problemKey(problemID int64) string {
	return problemKeyPrefix + strconv.FormatInt(problemID, 10)
}

func marshalProblem(p *model.Problem) string {
	// TestCode is serialized too: the judge-worker reads problems through
	// this cache and needs the test suite.
	data, err := json.Marshal(struct {
		*model.Problem
		TestCode string `json:"test_code"`
	}{Problem: p, TestCode: p.TestCode})
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalProblem(data string) (*model.Problem, error) {
	var wrapped struct {
		model.Problem
		TestCode string `json:"test_code"`
	}
	if err := json.Unmarshal([]byte(data), &wrapped); err != nil {
		return nil, err
	}
	p := wrapped.Problem
	p.TestCode = wrapped.TestCode
	return &p, nil
}
