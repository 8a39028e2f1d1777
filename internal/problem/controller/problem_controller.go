package controller

import (
	stderrors "errors"
	"strconv"

	"jarcode/internal/problem/repository"
	pkgerrors "jarcode/pkg/errors"
	"jarcode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemController exposes read-only problem endpoints. Problem authoring
// is owned by a separate system.
type ProblemController struct {
	problems repository.ProblemRepository
}

func NewProblemController(problems repository.ProblemRepository) *ProblemController {
	return &ProblemController{problems: problems}
}

// Get handles GET /api/v1/problems/:id.
func (h *ProblemController) Get(c *gin.Context) {
	problemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "invalid problem id")
		return
	}

	problem, err := h.problems.GetByID(c.Request.Context(), problemID)
	if err != nil {
		if stderrors.Is(err, repository.ErrProblemNotFound) {
			response.ErrorWithCode(c, pkgerrors.ProblemNotFound, "")
			return
		}
		response.Error(c, pkgerrors.Wrap(err, pkgerrors.DatabaseError))
		return
	}
	response.Success(c, problem)
}

// List handles GET /api/v1/problems.
func (h *ProblemController) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	problems, err := h.problems.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, pkgerrors.Wrap(err, pkgerrors.DatabaseError))
		return
	}
	response.Success(c, problems)
}
