package wizard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/service"
	"github.com/rs/zerolog/log"
)

// Step is the wizard's position in the authoring sequence.
type Step int

const (
	StepMetadata Step = iota
	StepQuestions
	StepReview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepMetadata:
		return "metadata"
	case StepQuestions:
		return "questions"
	case StepReview:
		return "review"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

var ErrWizardFinished = errors.New("wizard has already finished")

// Wizard drives one instructor through Metadata -> Questions -> Review ->
// Published/Draft for exactly one assessment. Steps only ever advance;
// validation failures leave the step untouched.
type Wizard struct {
	mu           sync.Mutex
	id           string
	instructorID uint
	step         Step
	assessmentID *uint
	metadata     dto.AssessmentMetadataDTO
	staging      *Staging
	// commitKey is fixed at the first commit attempt and reused verbatim on
	// every retry, so a commit whose response was lost cannot be applied
	// twice server-side.
	commitKey string
	committed bool
	touched   time.Time
	svc       service.AssessmentService
}

func newWizard(id string, instructorID uint, svc service.AssessmentService) *Wizard {
	return &Wizard{
		id:           id,
		instructorID: instructorID,
		step:         StepMetadata,
		staging:      NewStaging(),
		touched:      time.Now(),
		svc:          svc,
	}
}

func (w *Wizard) ID() string {
	return w.id
}

func (w *Wizard) InstructorID() uint {
	return w.instructorID
}

// SubmitMetadata validates Step 1 fields and persists the assessment shell.
// The wizard advances to question entry exactly once; re-submitting from a
// later step (the edit flow) updates the stored record without regressing.
func (w *Wizard) SubmitMetadata(meta dto.AssessmentMetadataDTO) (*dto.AssessmentResponseDTO, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = time.Now()

	if w.step == StepDone {
		return nil, ErrWizardFinished
	}
	if err := validateMetadata(meta); err != nil {
		return nil, err
	}

	resp, err := w.svc.CreateOrUpdateMetadata(w.assessmentID, w.instructorID, meta)
	if err != nil {
		return nil, err
	}

	w.metadata = meta
	if w.assessmentID == nil {
		id := resp.ID
		w.assessmentID = &id
	}
	if w.step == StepMetadata {
		w.step = StepQuestions
	}
	log.Info().Str("wizardID", w.id).Uint("assessmentID", resp.ID).Msg("Wizard metadata accepted")
	return resp, nil
}

// StageQuestion appends a validated question draft to local staging. No
// network call happens here.
func (w *Wizard) StageQuestion(draft dto.StagedQuestionDTO) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = time.Now()

	if w.step != StepQuestions {
		return fmt.Errorf("cannot stage questions during step %q", w.step)
	}
	return w.staging.Add(draft)
}

func (w *Wizard) RemoveStaged(position int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = time.Now()

	if w.step != StepQuestions {
		return fmt.Errorf("cannot edit staged questions during step %q", w.step)
	}
	return w.staging.Remove(position)
}

// CommitQuestions persists the staged list as one batch. On failure the
// staged list is retained unchanged so the instructor can retry; the retry
// carries the same idempotency key. Calling again after a success whose
// response was lost is absorbed server-side by that key.
func (w *Wizard) CommitQuestions(clientKey string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = time.Now()

	if w.step != StepQuestions && w.step != StepReview {
		return fmt.Errorf("cannot commit questions during step %q", w.step)
	}
	if w.staging.Len() == 0 {
		return service.NewValidationError(map[string]string{"questions": "stage at least one question before committing"})
	}
	if w.assessmentID == nil {
		return fmt.Errorf("no assessment bound to this wizard")
	}

	if w.commitKey == "" {
		if clientKey != "" {
			w.commitKey = clientKey
		} else {
			w.commitKey = uuid.NewString()
		}
	}

	if err := w.svc.ReplaceQuestions(*w.assessmentID, w.staging.Items(), w.commitKey); err != nil {
		log.Warn().Err(err).Str("wizardID", w.id).Msg("Question batch commit failed; staging retained")
		return err
	}

	w.committed = true
	w.step = StepReview
	log.Info().Str("wizardID", w.id).Uint("assessmentID", *w.assessmentID).Int("count", w.staging.Len()).Msg("Question batch committed")
	return nil
}

// Publish is the terminal step: the assessment becomes learner-visible.
func (w *Wizard) Publish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = time.Now()

	if w.step != StepReview || !w.committed {
		return fmt.Errorf("cannot publish before reviewing a committed question batch")
	}
	if err := w.svc.Publish(*w.assessmentID); err != nil {
		return err
	}
	w.step = StepDone
	return nil
}

// SaveDraft is the other terminal step; the assessment stays invisible to
// learners.
func (w *Wizard) SaveDraft() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = time.Now()

	if w.step == StepMetadata || w.step == StepDone {
		return fmt.Errorf("cannot save a draft during step %q", w.step)
	}
	if err := w.svc.SaveDraft(*w.assessmentID); err != nil {
		return err
	}
	w.step = StepDone
	return nil
}

func (w *Wizard) State() dto.WizardStateDTO {
	w.mu.Lock()
	defer w.mu.Unlock()

	return dto.WizardStateDTO{
		WizardID:     w.id,
		Step:         w.step.String(),
		AssessmentID: w.assessmentID,
		Metadata:     w.metadata,
		Staged:       w.staging.Items(),
		Committed:    w.committed,
	}
}

func (w *Wizard) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.touched)
}

func validateMetadata(meta dto.AssessmentMetadataDTO) error {
	fields := map[string]string{}

	if strings.TrimSpace(meta.Title) == "" {
		fields["title"] = "title is required"
	}
	switch {
	case meta.StartAt.IsZero():
		fields["start_at"] = "schedule start is required"
	case meta.EndAt.IsZero():
		fields["end_at"] = "schedule end is required"
	case !meta.StartAt.Before(meta.EndAt):
		fields["start_at"] = "schedule start must be before its end"
	}
	if meta.DurationMinutes <= 0 {
		fields["duration_minutes"] = "duration must be greater than zero"
	}
	if meta.PassingScore <= 0 {
		fields["passing_score"] = "passing score must be greater than zero"
	}
	if meta.TotalPoints <= 0 {
		fields["total_points"] = "total points must be greater than zero"
	}

	if len(fields) > 0 {
		return service.NewValidationError(fields)
	}
	return nil
}
