package wizard

import (
	"fmt"
	"strings"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/service"
)

// Staging is the wizard-local ordered list of not-yet-committed questions.
// Everything here is validated and held in memory only; nothing touches the
// repository until the batch commit. Lost when the wizard is abandoned.
type Staging struct {
	items []dto.StagedQuestionDTO
}

func NewStaging() *Staging {
	return &Staging{}
}

func (s *Staging) Add(draft dto.StagedQuestionDTO) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	if draft.Type == string(model.TrueFalse) {
		draft.CorrectAnswer = normalizeTrueFalse(draft.CorrectAnswer)
	}
	s.items = append(s.items, draft)
	return nil
}

// Remove drops the staged question at the given 1-based position.
func (s *Staging) Remove(position int) error {
	if position < 1 || position > len(s.items) {
		return fmt.Errorf("no staged question at position %d", position)
	}
	s.items = append(s.items[:position-1], s.items[position:]...)
	return nil
}

func (s *Staging) Items() []dto.StagedQuestionDTO {
	out := make([]dto.StagedQuestionDTO, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Staging) Len() int {
	return len(s.items)
}

func (s *Staging) PointsSum() float64 {
	sum := 0.0
	for _, q := range s.items {
		sum += q.Points
	}
	return sum
}

func validateDraft(draft dto.StagedQuestionDTO) error {
	fields := map[string]string{}

	if strings.TrimSpace(draft.Text) == "" {
		fields["text"] = "question text is required"
	}
	if draft.Points <= 0 {
		fields["points"] = "points must be greater than zero"
	}

	switch model.QuestionType(draft.Type) {
	case model.MultipleChoice:
		if len(draft.Options) < 2 {
			fields["options"] = "multiple choice requires at least two options"
		}
		labels := map[string]bool{}
		for _, opt := range draft.Options {
			if strings.TrimSpace(opt.Label) == "" || strings.TrimSpace(opt.Text) == "" {
				fields["options"] = "every option needs a label and text"
				break
			}
			if labels[opt.Label] {
				fields["options"] = fmt.Sprintf("duplicate option label %q", opt.Label)
				break
			}
			labels[opt.Label] = true
		}
		if draft.CorrectAnswer == "" {
			fields["correct_answer"] = "a correct option label must be designated"
		} else if _, ok := fields["options"]; !ok && !labels[draft.CorrectAnswer] {
			fields["correct_answer"] = fmt.Sprintf("correct answer %q is not an option label", draft.CorrectAnswer)
		}
	case model.TrueFalse:
		if len(draft.Options) > 0 {
			fields["options"] = "true/false questions do not take options"
		}
		if normalizeTrueFalse(draft.CorrectAnswer) == "" {
			fields["correct_answer"] = `correct answer must be "True" or "False"`
		}
	case model.Identification:
		if len(draft.Options) > 0 {
			fields["options"] = "identification questions do not take options"
		}
		if strings.TrimSpace(draft.CorrectAnswer) == "" {
			fields["correct_answer"] = "an expected answer is required"
		}
	default:
		fields["type"] = fmt.Sprintf("unknown question type %q", draft.Type)
	}

	if len(fields) > 0 {
		return service.NewValidationError(fields)
	}
	return nil
}

func normalizeTrueFalse(answer string) string {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "true":
		return "True"
	case "false":
		return "False"
	default:
		return ""
	}
}
