package student

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/middleware"
	"github.com/htvu/Athene/internal/service"
	"github.com/htvu/Athene/internal/session"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	assessmentService service.AssessmentService
	attemptService    service.AttemptService
	sessions          *session.Manager
}

func NewAttemptController(assessmentService service.AssessmentService, attemptService service.AttemptService, sessions *session.Manager) *AttemptController {
	return &AttemptController{
		assessmentService: assessmentService,
		attemptService:    attemptService,
		sessions:          sessions,
	}
}

// ListAssessments godoc
// @Summary (Student) List published assessments
// @Description Published assessments with this learner's attempt status, so the client can offer Start or View Result per row.
// @Tags Student - Attempts
// @Produce json
// @Success 200 {array} dto.AssessmentSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /student/assessments [get]
func (c *AttemptController) ListAssessments(ctx *gin.Context) {
	studentID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	summaries, err := c.assessmentService.ListForStudent(studentID)
	if err != nil {
		log.Error().Err(err).Uint("studentID", studentID).Msg("ListAssessments: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve assessments"})
		return
	}
	ctx.JSON(http.StatusOK, summaries)
}

// GetAssessmentDetail godoc
// @Summary (Student) Get a sanitized assessment
// @Description Learner-facing view of a published assessment; correct answers are stripped.
// @Tags Student - Attempts
// @Produce json
// @Param assessment_id path int true "Assessment ID"
// @Success 200 {object} dto.AssessmentDetailDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Assessment ID format"
// @Failure 404 {object} dto.ErrorResponse "Assessment not found or not published"
// @Router /student/assessments/{assessment_id} [get]
func (c *AttemptController) GetAssessmentDetail(ctx *gin.Context) {
	assessmentID, ok := c.pathID(ctx, "assessment_id")
	if !ok {
		return
	}

	detail, err := c.assessmentService.GetForDelivery(assessmentID)
	if err != nil {
		if errors.Is(err, service.ErrAssessmentNotFound) || errors.Is(err, service.ErrAssessmentNotOpen) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Assessment not available"})
			return
		}
		log.Error().Err(err).Uint("assessmentID", assessmentID).Msg("GetAssessmentDetail: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve assessment"})
		return
	}
	ctx.JSON(http.StatusOK, detail)
}

// StartAttempt godoc
// @Summary (Student) Start or resume an attempt
// @Description Opens the timed attempt session. Starting again while an attempt is in progress resumes it; a finished attempt yields 409.
// @Tags Student - Attempts
// @Produce json
// @Param assessment_id path int true "Assessment ID"
// @Success 201 {object} dto.StartAttemptResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Assessment ID format"
// @Failure 404 {object} dto.ErrorResponse "Assessment not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already completed"
// @Failure 422 {object} dto.ErrorResponse "Assessment outside its scheduled window"
// @Router /student/assessments/{assessment_id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	studentID, authed := middleware.CurrentUserID(ctx)
	if !authed {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}
	assessmentID, ok := c.pathID(ctx, "assessment_id")
	if !ok {
		return
	}

	controller, started, err := c.sessions.Start(assessmentID, studentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssessmentNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Assessment not found"})
		case errors.Is(err, service.ErrAssessmentNotOpen):
			ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Assessment is outside its scheduled window"})
		case service.IsConflict(err):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
		default:
			log.Error().Err(err).Uint("assessmentID", assessmentID).Uint("studentID", studentID).Msg("StartAttempt: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to start attempt"})
		}
		return
	}

	ctx.JSON(http.StatusCreated, dto.StartAttemptResponseDTO{
		AttemptID:        started.Attempt.ID,
		AssessmentID:     assessmentID,
		StartedAt:        started.Attempt.StartedAt,
		RemainingSeconds: controller.RemainingSeconds(),
		Resumed:          started.Resumed,
	})
}

// RecordAnswer godoc
// @Summary (Student) Record an answer
// @Description Buffers the learner's answer in the live session. Re-answering a question overwrites the previous value; nothing is persisted until submit.
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param answer body dto.RecordAnswerRequest true "Question and selected value"
// @Success 204 "Answer buffered"
// @Failure 400 {object} dto.ErrorResponse "Invalid input or unknown question"
// @Failure 404 {object} dto.ErrorResponse "No live session for this attempt"
// @Failure 409 {object} dto.ErrorResponse "Attempt no longer accepting answers"
// @Router /student/attempts/{attempt_id}/answers [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	controller, ok := c.session(ctx)
	if !ok {
		return
	}

	var req dto.RecordAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := controller.RecordAnswer(req.QuestionID, req.Value); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionTerminal):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Attempt is no longer accepting answers"})
		case errors.Is(err, session.ErrUnknownQuestion):
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Question does not belong to this assessment"})
		default:
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to record answer"})
		}
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ReportVisibility godoc
// @Summary (Student) Report a surface-visibility change
// @Description Applies the two-strike integrity policy. The first hidden transition warns; the second auto-submits the attempt.
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param event body dto.VisibilityEventRequest true "Visibility state"
// @Success 200 {object} dto.VisibilityResponseDTO
// @Failure 404 {object} dto.ErrorResponse "No live session for this attempt"
// @Router /student/attempts/{attempt_id}/visibility [post]
func (c *AttemptController) ReportVisibility(ctx *gin.Context) {
	studentID, authed := middleware.CurrentUserID(ctx)
	if !authed {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}
	attemptID, ok := c.pathID(ctx, "attempt_id")
	if !ok {
		return
	}

	var req dto.VisibilityEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	monitor, err := c.sessions.Monitor(attemptID, studentID)
	if err != nil {
		c.renderSessionError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, monitor.HandleVisibility(req.Hidden))
}

// SubmitAttempt godoc
// @Summary (Student) Submit the attempt
// @Description Manually finishes the attempt and returns the score summary. The submit races the timer and the integrity monitor; whichever fires first wins and the rest are absorbed.
// @Tags Student - Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptScoreDTO
// @Failure 404 {object} dto.ErrorResponse "No live session for this attempt"
// @Failure 409 {object} dto.ErrorResponse "Attempt already finished with no stored score"
// @Failure 502 {object} dto.ErrorResponse "Submission failed after retries"
// @Router /student/attempts/{attempt_id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	controller, ok := c.session(ctx)
	if !ok {
		return
	}

	score, err := controller.Submit(true)
	if err != nil {
		if errors.Is(err, session.ErrSessionTerminal) {
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Attempt already finished"})
			return
		}
		log.Error().Err(err).Uint("attemptID", controller.AttemptID()).Msg("SubmitAttempt: submission failed")
		ctx.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "Failed to submit attempt", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, score)
}

// GetResult godoc
// @Summary (Student) Get the attempt result
// @Description Canonical graded result: score, pass/fail against the fixed threshold, and per-question outcomes. Correct answers are revealed only for questions answered incorrectly.
// @Tags Student - Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.ResultDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Attempt ID format"
// @Failure 403 {object} dto.ErrorResponse "Attempt belongs to another learner"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt not graded yet"
// @Router /student/attempts/{attempt_id}/result [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	studentID, authed := middleware.CurrentUserID(ctx)
	if !authed {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}
	attemptID, ok := c.pathID(ctx, "attempt_id")
	if !ok {
		return
	}

	result, err := c.attemptService.Result(attemptID, studentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Attempt not found"})
		case errors.Is(err, service.ErrNotAttemptOwner):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Attempt belongs to another learner"})
		case errors.Is(err, service.ErrResultNotReady):
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Attempt is not graded yet"})
		default:
			log.Error().Err(err).Uint("attemptID", attemptID).Msg("GetResult: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve result"})
		}
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// ListMyAttempts godoc
// @Summary (Student) List my attempts
// @Description Summary of every attempt this learner has made, across assessments.
// @Tags Student - Attempts
// @Produce json
// @Success 200 {array} dto.AttemptSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /student/attempts [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	studentID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	attempts, err := c.attemptService.ListByStudent(studentID)
	if err != nil {
		log.Error().Err(err).Uint("studentID", studentID).Msg("ListMyAttempts: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve attempts"})
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

func (c *AttemptController) pathID(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

// session resolves the live session for the path attempt, enforcing
// ownership. On failure it writes the response and returns ok=false.
func (c *AttemptController) session(ctx *gin.Context) (*session.Controller, bool) {
	studentID, authed := middleware.CurrentUserID(ctx)
	if !authed {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return nil, false
	}
	attemptID, ok := c.pathID(ctx, "attempt_id")
	if !ok {
		return nil, false
	}

	controller, err := c.sessions.Get(attemptID, studentID)
	if err != nil {
		c.renderSessionError(ctx, err)
		return nil, false
	}
	return controller, true
}

func (c *AttemptController) renderSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "No live session for this attempt"})
	case errors.Is(err, service.ErrNotAttemptOwner):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Attempt belongs to another learner"})
	default:
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to resolve attempt session"})
	}
}
