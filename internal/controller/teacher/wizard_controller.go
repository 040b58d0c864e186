package teacher

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/middleware"
	"github.com/htvu/Athene/internal/service"
	"github.com/htvu/Athene/internal/wizard"
	"github.com/rs/zerolog/log"
)

type WizardController struct {
	wizards           *wizard.Manager
	assessmentService service.AssessmentService
}

func NewWizardController(wizards *wizard.Manager, assessmentService service.AssessmentService) *WizardController {
	return &WizardController{wizards: wizards, assessmentService: assessmentService}
}

// BeginWizard godoc
// @Summary (Teacher) Open an authoring wizard
// @Description Opens a new wizard session. Pass assessment_id to edit an existing assessment; its metadata is pre-populated and the wizard re-enters at the metadata step.
// @Tags Teacher - Authoring
// @Accept json
// @Produce json
// @Param request body dto.BeginWizardRequest false "Optional existing assessment to edit"
// @Success 201 {object} dto.WizardStateDTO
// @Failure 404 {object} dto.ErrorResponse "Assessment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /teacher/wizards [post]
func (c *WizardController) BeginWizard(ctx *gin.Context) {
	instructorID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return
	}

	var req dto.BeginWizardRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
			return
		}
	}

	w, err := c.wizards.Begin(instructorID, req.AssessmentID)
	if err != nil {
		if errors.Is(err, service.ErrAssessmentNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Assessment not found"})
			return
		}
		if errors.Is(err, service.ErrNotAssessmentOwner) {
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Assessment belongs to another instructor"})
			return
		}
		log.Error().Err(err).Uint("instructorID", instructorID).Msg("BeginWizard: failed to open wizard")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to open wizard session"})
		return
	}
	ctx.JSON(http.StatusCreated, w.State())
}

// GetWizardState godoc
// @Summary (Teacher) Get wizard state
// @Description Returns the wizard's current step, metadata, and staged questions so the authoring client can resume.
// @Tags Teacher - Authoring
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Success 200 {object} dto.WizardStateDTO
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Router /teacher/wizards/{wizard_id} [get]
func (c *WizardController) GetWizardState(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, w.State())
}

// SubmitMetadata godoc
// @Summary (Teacher) Submit assessment metadata
// @Description Validates and persists the wizard's metadata step. Field-level validation errors are returned per field.
// @Tags Teacher - Authoring
// @Accept json
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Param metadata body dto.AssessmentMetadataDTO true "Assessment metadata"
// @Success 200 {object} dto.AssessmentResponseDTO
// @Failure 400 {object} dto.ValidationErrorResponse "Invalid metadata fields"
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Router /teacher/wizards/{wizard_id}/metadata [put]
func (c *WizardController) SubmitMetadata(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}

	var meta dto.AssessmentMetadataDTO
	if err := ctx.ShouldBindJSON(&meta); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := w.SubmitMetadata(meta)
	if err != nil {
		c.renderWizardError(ctx, err, "SubmitMetadata")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// StageQuestion godoc
// @Summary (Teacher) Stage a question draft
// @Description Adds a validated question to the wizard's staged list. Nothing is persisted until the batch commit.
// @Tags Teacher - Authoring
// @Accept json
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Param question body dto.StagedQuestionDTO true "Question draft"
// @Success 200 {object} dto.WizardStateDTO
// @Failure 400 {object} dto.ValidationErrorResponse "Invalid question fields"
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Router /teacher/wizards/{wizard_id}/questions [post]
func (c *WizardController) StageQuestion(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}

	var draft dto.StagedQuestionDTO
	if err := ctx.ShouldBindJSON(&draft); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := w.StageQuestion(draft); err != nil {
		c.renderWizardError(ctx, err, "StageQuestion")
		return
	}
	ctx.JSON(http.StatusOK, w.State())
}

// RemoveStagedQuestion godoc
// @Summary (Teacher) Remove a staged question
// @Description Removes the staged question at the given 1-based position.
// @Tags Teacher - Authoring
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Param position path int true "1-based staged position"
// @Success 200 {object} dto.WizardStateDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid position"
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Router /teacher/wizards/{wizard_id}/questions/{position} [delete]
func (c *WizardController) RemoveStagedQuestion(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}

	position, err := strconv.Atoi(ctx.Param("position"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid position format"})
		return
	}
	if err := w.RemoveStaged(position); err != nil {
		c.renderWizardError(ctx, err, "RemoveStagedQuestion")
		return
	}
	ctx.JSON(http.StatusOK, w.State())
}

// CommitQuestions godoc
// @Summary (Teacher) Commit the staged question batch
// @Description Persists all staged questions as one batch, replacing the assessment's question set. The commit is idempotent: a retry after a lost response reuses the same key and is absorbed.
// @Tags Teacher - Authoring
// @Accept json
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Param request body dto.CommitQuestionsRequest false "Optional client idempotency key"
// @Success 200 {object} dto.WizardStateDTO
// @Failure 400 {object} dto.ValidationErrorResponse "Empty batch or wrong step"
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Failure 500 {object} dto.ErrorResponse "Commit failed; staged questions retained"
// @Router /teacher/wizards/{wizard_id}/commit [post]
func (c *WizardController) CommitQuestions(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}

	var req dto.CommitQuestionsRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
			return
		}
	}

	if err := w.CommitQuestions(req.CommitKey); err != nil {
		if service.IsValidation(err) {
			c.renderWizardError(ctx, err, "CommitQuestions")
			return
		}
		log.Error().Err(err).Str("wizardID", w.ID()).Msg("CommitQuestions: batch commit failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to commit question batch; staged questions were kept", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, w.State())
}

// Publish godoc
// @Summary (Teacher) Publish the assessment
// @Description Finishes the wizard by making the assessment visible to learners. Requires a committed question batch.
// @Tags Teacher - Authoring
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Success 200 {object} dto.WizardStateDTO
// @Failure 400 {object} dto.ErrorResponse "Nothing committed to publish"
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Router /teacher/wizards/{wizard_id}/publish [post]
func (c *WizardController) Publish(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}
	if err := w.Publish(); err != nil {
		c.renderWizardError(ctx, err, "Publish")
		return
	}
	c.wizards.Close(w.ID())
	ctx.JSON(http.StatusOK, w.State())
}

// SaveDraft godoc
// @Summary (Teacher) Save the assessment as a draft
// @Description Finishes the wizard without publishing; the assessment stays hidden from learners.
// @Tags Teacher - Authoring
// @Produce json
// @Param wizard_id path string true "Wizard ID"
// @Success 200 {object} dto.WizardStateDTO
// @Failure 400 {object} dto.ErrorResponse "Wrong step for saving a draft"
// @Failure 404 {object} dto.ErrorResponse "Wizard session not found"
// @Router /teacher/wizards/{wizard_id}/draft [post]
func (c *WizardController) SaveDraft(ctx *gin.Context) {
	w, ok := c.wizard(ctx)
	if !ok {
		return
	}
	if err := w.SaveDraft(); err != nil {
		c.renderWizardError(ctx, err, "SaveDraft")
		return
	}
	c.wizards.Close(w.ID())
	ctx.JSON(http.StatusOK, w.State())
}

// GetAssessment godoc
// @Summary (Teacher) Get an authored assessment
// @Description Full authoring-side view of an assessment, correct answers included.
// @Tags Teacher - Authoring
// @Produce json
// @Param assessment_id path int true "Assessment ID"
// @Success 200 {object} dto.AssessmentResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Assessment ID format"
// @Failure 404 {object} dto.ErrorResponse "Assessment not found"
// @Router /teacher/assessments/{assessment_id} [get]
func (c *WizardController) GetAssessment(ctx *gin.Context) {
	assessmentID, err := strconv.ParseUint(ctx.Param("assessment_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Assessment ID format"})
		return
	}

	resp, svcErr := c.assessmentService.GetWithQuestions(uint(assessmentID))
	if svcErr != nil {
		if errors.Is(svcErr, service.ErrAssessmentNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Assessment not found"})
			return
		}
		log.Error().Err(svcErr).Uint64("assessmentID", assessmentID).Msg("GetAssessment: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve assessment"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// wizard resolves the path wizard and checks ownership. On failure it writes
// the response and returns ok=false.
func (c *WizardController) wizard(ctx *gin.Context) (*wizard.Wizard, bool) {
	instructorID, authed := middleware.CurrentUserID(ctx)
	if !authed {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
		return nil, false
	}

	w, err := c.wizards.Get(ctx.Param("wizard_id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Wizard session not found or expired"})
		return nil, false
	}
	if w.InstructorID() != instructorID {
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Wizard belongs to another instructor"})
		return nil, false
	}
	return w, true
}

func (c *WizardController) renderWizardError(ctx *gin.Context, err error, op string) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		ctx.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{Message: "Validation failed", Fields: vErr.Fields})
		return
	}
	if errors.Is(err, service.ErrAssessmentNotFound) {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Assessment not found"})
		return
	}
	if errors.Is(err, service.ErrNotAssessmentOwner) {
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Assessment belongs to another instructor"})
		return
	}
	log.Warn().Err(err).Str("op", op).Msg("Wizard operation rejected")
	ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
}
