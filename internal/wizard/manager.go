package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/service"
	"github.com/rs/zerolog/log"
)

var ErrWizardNotFound = errors.New("wizard session not found")

const defaultWizardTTL = 2 * time.Hour

// Manager holds live wizard sessions keyed by id. Sessions and their
// staged questions are memory-only: an expired or closed wizard loses any
// uncommitted work, which is the accepted tradeoff.
type Manager struct {
	mu      sync.Mutex
	wizards map[string]*Wizard
	svc     service.AssessmentService
	ttl     time.Duration
}

func NewManager(svc service.AssessmentService) *Manager {
	return &Manager{
		wizards: make(map[string]*Wizard),
		svc:     svc,
		ttl:     defaultWizardTTL,
	}
}

// Begin opens a new wizard. With assessmentID set this is the edit flow:
// the stored record pre-populates metadata and the wizard re-enters at
// MetadataEntry, with Review unreachable until a fresh commit.
func (m *Manager) Begin(instructorID uint, assessmentID *uint) (*Wizard, error) {
	w := newWizard(uuid.NewString(), instructorID, m.svc)

	if assessmentID != nil {
		existing, err := m.svc.GetWithQuestions(*assessmentID)
		if err != nil {
			return nil, err
		}
		if existing.CreatedBy != instructorID {
			return nil, service.ErrNotAssessmentOwner
		}
		id := existing.ID
		w.assessmentID = &id
		w.metadata = dto.AssessmentMetadataDTO{
			Title:           existing.Title,
			Instructions:    existing.Instructions,
			StartAt:         existing.StartAt,
			EndAt:           existing.EndAt,
			DurationMinutes: existing.DurationMinutes,
			PassingScore:    existing.PassingScore,
			TotalPoints:     existing.TotalPoints,
		}
	}

	m.mu.Lock()
	m.sweepLocked()
	m.wizards[w.id] = w
	m.mu.Unlock()

	log.Info().Str("wizardID", w.id).Uint("instructorID", instructorID).Msg("Wizard session opened")
	return w, nil
}

func (m *Manager) Get(id string) (*Wizard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wizards[id]
	if !ok {
		return nil, ErrWizardNotFound
	}
	return w, nil
}

func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wizards, id)
}

func (m *Manager) sweepLocked() {
	now := time.Now()
	for id, w := range m.wizards {
		if w.idleSince(now) > m.ttl {
			log.Info().Str("wizardID", id).Msg("Expiring idle wizard session; staged questions discarded")
			delete(m.wizards, id)
		}
	}
}
