package session

import (
	"github.com/htvu/Athene/internal/dto"
	"github.com/rs/zerolog/log"
)

// violationLimit is the two-strike policy: first hidden transition warns,
// second terminates.
const violationLimit = 2

// ViolationRecorder persists the running violation count; best effort, the
// in-memory count is authoritative for the termination decision.
type ViolationRecorder interface {
	RecordViolation(attemptID uint, count int) error
}

// Monitor watches surface-visibility signals for one live session and
// applies the two-strike policy.
type Monitor struct {
	controller *Controller
	recorder   ViolationRecorder
}

func NewMonitor(controller *Controller, recorder ViolationRecorder) *Monitor {
	return &Monitor{controller: controller, recorder: recorder}
}

// HandleVisibility processes one visibility-changed signal. Transitions to
// visible are ignored. The first hidden transition yields a dismissible
// warning; the second auto-submits immediately, whether or not the warning
// was ever dismissed and regardless of the interval between the two.
func (m *Monitor) HandleVisibility(hidden bool) dto.VisibilityResponseDTO {
	c := m.controller

	if !hidden {
		c.mu.Lock()
		resp := dto.VisibilityResponseDTO{
			ViolationCount: c.violations,
			Warned:         c.warned,
			Terminated:     c.state.Terminal(),
		}
		c.mu.Unlock()
		return resp
	}

	c.mu.Lock()
	if c.state != StateInProgress {
		resp := dto.VisibilityResponseDTO{
			ViolationCount: c.violations,
			Warned:         c.warned,
			Terminated:     true,
		}
		c.mu.Unlock()
		return resp
	}

	c.violations++
	count := c.violations
	if count < violationLimit {
		c.warned = true
		c.mu.Unlock()

		m.persistCount(count)
		log.Info().Uint("attemptID", c.attemptID).Msg("First integrity violation; learner warned")
		return dto.VisibilityResponseDTO{ViolationCount: count, Warned: true}
	}
	c.mu.Unlock()

	m.persistCount(count)
	log.Warn().Uint("attemptID", c.attemptID).Int("violations", count).Msg("Second integrity violation; auto-submitting")
	c.Submit(false)

	return dto.VisibilityResponseDTO{ViolationCount: count, Warned: true, Terminated: true}
}

func (m *Monitor) persistCount(count int) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordViolation(m.controller.attemptID, count); err != nil {
		log.Warn().Err(err).Uint("attemptID", m.controller.attemptID).Msg("Failed to persist violation count")
	}
}
