package controller

import (
	"strconv"

	"jarcode/internal/submission/service"
	"jarcode/internal/user/middleware"
	pkgerrors "jarcode/pkg/errors"
	"jarcode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionController handles submission HTTP endpoints. All routes sit
// behind RequireAuth.
type SubmissionController struct {
	submitService *service.SubmitService
}

func NewSubmissionController(submitService *service.SubmitService) *SubmissionController {
	return &SubmissionController{submitService: submitService}
}

type createSubmissionRequest struct {
	ProblemID int64  `json:"problem_id"`
	Solution  string `json:"solution"`
}

// Create handles POST /api/v1/submissions. The submission is accepted and
// queued; evaluation happens asynchronously.
func (h *SubmissionController) Create(c *gin.Context) {
	authorID, ok := middleware.UserID(c)
	if !ok {
		response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing identity")
		return
	}

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if req.ProblemID <= 0 {
		response.BadRequest(c, "problem_id is required")
		return
	}

	submission, err := h.submitService.Submit(c.Request.Context(), authorID, req.ProblemID, req.Solution)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Get handles GET /api/v1/submissions/:id.
func (h *SubmissionController) Get(c *gin.Context) {
	authorID, ok := middleware.UserID(c)
	if !ok {
		response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing identity")
		return
	}

	submissionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || submissionID <= 0 {
		response.BadRequest(c, "invalid submission id")
		return
	}

	submission, err := h.submitService.GetForAuthor(c.Request.Context(), authorID, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submission)
}

// List handles GET /api/v1/submissions?problem_id=N: the caller's history
// for one problem, newest first.
func (h *SubmissionController) List(c *gin.Context) {
	authorID, ok := middleware.UserID(c)
	if !ok {
		response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing identity")
		return
	}

	problemID, err := strconv.ParseInt(c.Query("problem_id"), 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "problem_id is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	submissions, err := h.submitService.ListForAuthor(c.Request.Context(), authorID, problemID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submissions)
}

// Status handles GET /api/v1/submissions/:id/status, a cheap poll backed by
// the Redis mirror while evaluation is in flight.
func (h *SubmissionController) Status(c *gin.Context) {
	authorID, ok := middleware.UserID(c)
	if !ok {
		response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing identity")
		return
	}

	submissionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || submissionID <= 0 {
		response.BadRequest(c, "invalid submission id")
		return
	}

	status, err := h.submitService.LiveStatus(c.Request.Context(), authorID, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": submissionID, "status": status})
}
