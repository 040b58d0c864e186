package session

import (
	"errors"
	"sync"
	"time"

	"github.com/htvu/Athene/config"
	"github.com/htvu/Athene/internal/service"
	"github.com/rs/zerolog/log"
)

var ErrSessionNotFound = errors.New("no live session for this attempt")

// Manager is the registry of live attempt sessions, one Controller per
// in-progress Attempt. The answer buffer lives only inside its Controller
// and is never shared across attempts or learners.
type Manager struct {
	mu        sync.Mutex
	byAttempt map[uint]*Controller
	monitors  map[uint]*Monitor
	svc       service.AttemptService
	opts      Options
	defaults  int // fallback duration, minutes
}

func NewManager(svc service.AttemptService, cfg *config.Config) *Manager {
	return &Manager{
		byAttempt: make(map[uint]*Controller),
		monitors:  make(map[uint]*Monitor),
		svc:       svc,
		opts: Options{
			MaxRetries: cfg.Session.SubmitMaxRetries,
			Backoff:    time.Duration(cfg.Session.SubmitBackoffMillis) * time.Millisecond,
		},
		defaults: cfg.Session.DefaultDurationMinutes,
	}
}

// Start opens (or resumes) the learner's session for an assessment. The
// duplicate-start decision lives in the AttemptService; a second Start for
// an in-progress attempt is absorbed into the existing Controller.
func (m *Manager) Start(assessmentID, studentID uint) (*Controller, *service.StartedAttempt, error) {
	started, err := m.svc.Start(assessmentID, studentID)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if existing, ok := m.byAttempt[started.Attempt.ID]; ok {
		m.mu.Unlock()
		return existing, started, nil
	}

	controller := NewController(started.Attempt, started.Assessment, m.svc, m.defaults, m.opts)
	m.byAttempt[started.Attempt.ID] = controller
	m.monitors[started.Attempt.ID] = NewMonitor(controller, m.svc)
	m.mu.Unlock()

	controller.Run()
	go m.reap(controller)

	log.Info().Uint("attemptID", started.Attempt.ID).Uint("studentID", studentID).Bool("resumed", started.Resumed).Msg("Attempt session opened")
	return controller, started, nil
}

// Get returns the live controller for an attempt, enforcing that only the
// owning learner can touch it.
func (m *Manager) Get(attemptID, studentID uint) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	controller, ok := m.byAttempt[attemptID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if controller.StudentID() != studentID {
		return nil, service.ErrNotAttemptOwner
	}
	return controller, nil
}

func (m *Manager) Monitor(attemptID, studentID uint) (*Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	monitor, ok := m.monitors[attemptID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if monitor.controller.StudentID() != studentID {
		return nil, service.ErrNotAttemptOwner
	}
	return monitor, nil
}

// reap waits for the session's termination event and drops it from the
// registry; the persisted attempt is the record from here on.
func (m *Manager) reap(controller *Controller) {
	event := <-controller.Events()
	if event.Err != nil {
		log.Error().Err(event.Err).Uint("attemptID", event.AttemptID).Msg("Attempt session ended in failure")
	} else {
		log.Info().Uint("attemptID", event.AttemptID).Bool("auto", event.Auto).Msg("Attempt session terminated")
	}

	m.mu.Lock()
	delete(m.byAttempt, event.AttemptID)
	delete(m.monitors, event.AttemptID)
	m.mu.Unlock()
}
