package session

import (
	"errors"
	"sync"
	"time"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/service"
	"github.com/rs/zerolog/log"
)

// State is the live attempt's lifecycle position. Transitions only ever
// move forward; Terminating is entered under the lock before any network
// call so a second termination trigger is rejected by construction.
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateTerminating
	StateResulted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInProgress:
		return "in_progress"
	case StateTerminating:
		return "terminating"
	case StateResulted:
		return "resulted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session stopped accepting answers.
func (s State) Terminal() bool {
	return s >= StateTerminating
}

var (
	ErrSessionTerminal = errors.New("attempt session is no longer accepting input")
	ErrUnknownQuestion = errors.New("question does not belong to this assessment")
)

// Submitter is the repository-side terminal write. Implemented by
// service.AttemptService.
type Submitter interface {
	Submit(attemptID uint, answers []dto.SubmittedAnswerDTO, auto bool) (*dto.AttemptScoreDTO, error)
}

// TerminationEvent is emitted exactly once when the session reaches a
// terminal outcome, for whichever layer hosts the session to consume.
type TerminationEvent struct {
	AttemptID uint
	Auto      bool
	Score     *dto.AttemptScoreDTO
	Err       error
}

// Options tune timing for production (1s ticks) and tests (fast ticks).
type Options struct {
	TickInterval time.Duration
	MaxRetries   int
	Backoff      time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	return o
}

// Controller owns one learner's timed attempt: the in-memory answer buffer,
// the countdown timer, and the single at-most-once termination path that
// the timer, the integrity monitor, and a manual submit all funnel into.
type Controller struct {
	mu         sync.Mutex
	state      State
	attemptID  uint
	studentID  uint
	remaining  int // seconds
	warned     bool
	violations int
	answers    map[uint]string
	order      []uint // authored question order, used to serialize the buffer
	score      *dto.AttemptScoreDTO

	submitter Submitter
	opts      Options

	stopTimer chan struct{}
	stopOnce  sync.Once
	events    chan TerminationEvent
}

// NewController builds an InProgress session for a started (possibly
// resumed) attempt. Remaining time is derived from the assessment duration,
// with defaultDurationMinutes as the fallback when none was authored; for a
// resumed attempt the elapsed wall time is already deducted.
func NewController(attempt *model.Attempt, assessment *model.Assessment, submitter Submitter, defaultDurationMinutes int, opts Options) *Controller {
	duration := assessment.DurationMinutes
	if duration <= 0 {
		duration = defaultDurationMinutes
	}
	remaining := duration*60 - int(time.Since(attempt.StartedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	order := make([]uint, 0, len(assessment.Questions))
	for _, q := range assessment.Questions {
		order = append(order, q.ID)
	}

	return &Controller{
		state:      StateInProgress,
		attemptID:  attempt.ID,
		studentID:  attempt.StudentID,
		remaining:  remaining,
		violations: attempt.ViolationCount,
		answers:    make(map[uint]string),
		order:      order,
		submitter:  submitter,
		opts:       opts.withDefaults(),
		stopTimer:  make(chan struct{}),
		events:     make(chan TerminationEvent, 1),
	}
}

// Run starts the countdown. A session resumed past its deadline submits
// immediately.
func (c *Controller) Run() {
	c.mu.Lock()
	expired := c.remaining <= 0 && c.state == StateInProgress
	c.mu.Unlock()
	if expired {
		go c.Submit(false)
		return
	}

	go func() {
		ticker := time.NewTicker(c.opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopTimer:
				return
			case <-ticker.C:
				if c.tick() {
					return
				}
			}
		}
	}()
}

// tick advances the countdown one second. Returns true once the timer's job
// is over, either because time ran out or the session went terminal.
func (c *Controller) tick() bool {
	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return true
	}
	c.remaining--
	expired := c.remaining <= 0
	c.mu.Unlock()

	if expired {
		c.Submit(false)
		return true
	}
	return false
}

// RecordAnswer overwrites the buffered value for one question. No
// correctness is computed here; answers leave the process only at submit.
func (c *Controller) RecordAnswer(questionID uint, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return ErrSessionTerminal
	}
	known := false
	for _, id := range c.order {
		if id == questionID {
			known = true
			break
		}
	}
	if !known {
		return ErrUnknownQuestion
	}
	c.answers[questionID] = value
	return nil
}

func (c *Controller) AttemptID() uint {
	return c.attemptID
}

func (c *Controller) StudentID() uint {
	return c.studentID
}

func (c *Controller) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events delivers the single TerminationEvent for this session.
func (c *Controller) Events() <-chan TerminationEvent {
	return c.events
}

// Submit is the single termination path shared by the manual action, the
// timer's zero-crossing, and the integrity monitor's second strike. Only
// the caller that wins the state transition performs the network call;
// every later call is a no-op that reports the stored outcome.
func (c *Controller) Submit(manual bool) (*dto.AttemptScoreDTO, error) {
	c.mu.Lock()
	if c.state != StateInProgress {
		score := c.score
		c.mu.Unlock()
		if score != nil {
			return score, nil
		}
		return nil, ErrSessionTerminal
	}
	c.state = StateTerminating
	answers := c.serializeLocked()
	c.mu.Unlock()

	// A manual submit must also silence the timer so it cannot fire a
	// conflicting auto-submit later.
	c.stopOnce.Do(func() { close(c.stopTimer) })

	auto := !manual
	score, err := c.submitWithRetry(answers, auto)

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
	} else {
		// The submitted/auto distinction lives in the persisted attempt and
		// the event; the session only needs "result available".
		c.score = score
		c.state = StateResulted
	}
	c.mu.Unlock()

	select {
	case c.events <- TerminationEvent{AttemptID: c.attemptID, Auto: auto, Score: score, Err: err}:
	default:
	}

	if err != nil {
		log.Error().Err(err).Uint("attemptID", c.attemptID).Bool("auto", auto).Msg("Attempt submission failed after retries")
		return nil, err
	}
	return score, nil
}

// submitWithRetry gives the terminal write a short, bounded retry budget.
// The exam deadline keeps advancing during any delay, so backoff stays in
// the sub-second range rather than growing unbounded.
func (c *Controller) submitWithRetry(answers []dto.SubmittedAnswerDTO, auto bool) (*dto.AttemptScoreDTO, error) {
	var score *dto.AttemptScoreDTO
	var err error
	backoff := c.opts.Backoff
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		score, err = c.submitter.Submit(c.attemptID, answers, auto)
		if err == nil {
			return score, nil
		}
		if service.IsConflict(err) || errors.Is(err, service.ErrAttemptNotFound) {
			return nil, err
		}
		if attempt < c.opts.MaxRetries-1 {
			log.Warn().Err(err).Uint("attemptID", c.attemptID).Int("try", attempt+1).Msg("Submit failed; retrying")
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, err
}

// serializeLocked flattens the answer buffer into question order. Caller
// holds the lock.
func (c *Controller) serializeLocked() []dto.SubmittedAnswerDTO {
	out := make([]dto.SubmittedAnswerDTO, 0, len(c.answers))
	for _, questionID := range c.order {
		if value, ok := c.answers[questionID]; ok {
			out = append(out, dto.SubmittedAnswerDTO{QuestionID: questionID, Value: value})
		}
	}
	return out
}
