package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/service"
)

// fakeSubmitter counts terminal writes and can fail a configured number of
// times before succeeding.
type fakeSubmitter struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	err       error
	lastAuto  bool
	lastOrder []uint
}

func (f *fakeSubmitter) Submit(attemptID uint, answers []dto.SubmittedAnswerDTO, auto bool) (*dto.AttemptScoreDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastAuto = auto
	f.lastOrder = nil
	for _, a := range answers {
		f.lastOrder = append(f.lastOrder, a.QuestionID)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failFirst {
		return nil, errors.New("temporarily unavailable")
	}
	return &dto.AttemptScoreDTO{AttemptID: attemptID, Score: 10, TotalPoints: 20, Percentage: 50, Status: "auto_submitted"}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testAttempt() *model.Attempt {
	return &model.Attempt{ID: 11, AssessmentID: 5, StudentID: 3, StartedAt: time.Now()}
}

func testAssessment() *model.Assessment {
	return &model.Assessment{
		DurationMinutes: 30,
		Questions: []model.Question{
			{ID: 101, Position: 1},
			{ID: 102, Position: 2},
			{ID: 103, Position: 3},
		},
	}
}

func fastOpts() Options {
	return Options{TickInterval: time.Millisecond, MaxRetries: 3, Backoff: time.Millisecond}
}

func TestRecordAnswerOverwritesAndValidates(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	if err := c.RecordAnswer(101, "A"); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if err := c.RecordAnswer(101, "B"); err != nil {
		t.Fatalf("re-RecordAnswer: %v", err)
	}
	if err := c.RecordAnswer(999, "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("unknown question = %v, want ErrUnknownQuestion", err)
	}

	if _, err := c.Submit(true); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := c.RecordAnswer(102, "C"); !errors.Is(err, ErrSessionTerminal) {
		t.Fatalf("answer after submit = %v, want ErrSessionTerminal", err)
	}
}

func TestSubmitSerializesInQuestionOrder(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	// Answer out of order; the serialized buffer must follow authored order.
	if err := c.RecordAnswer(103, "x"); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if err := c.RecordAnswer(101, "y"); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if _, err := c.Submit(true); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []uint{101, 103}
	if len(sub.lastOrder) != len(want) {
		t.Fatalf("serialized %d answers, want %d", len(sub.lastOrder), len(want))
	}
	for i := range want {
		if sub.lastOrder[i] != want[i] {
			t.Fatalf("serialized order = %v, want %v", sub.lastOrder, want)
		}
	}
	if sub.lastAuto {
		t.Error("manual submit must not be flagged auto")
	}
}

func TestSubmitAtMostOnceUnderConcurrentTriggers(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	const racers = 16
	var wg sync.WaitGroup
	var scored, absorbed atomic.Int32
	for i := 0; i < racers; i++ {
		manual := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			score, err := c.Submit(manual)
			switch {
			case err == nil && score != nil:
				scored.Add(1)
			case errors.Is(err, ErrSessionTerminal):
				absorbed.Add(1)
			default:
				t.Errorf("unexpected submit outcome: %v, %v", score, err)
			}
		}()
	}
	wg.Wait()

	if got := sub.callCount(); got != 1 {
		t.Fatalf("terminal write performed %d times, want 1", got)
	}
	if scored.Load() < 1 {
		t.Fatal("the winning trigger must return the score")
	}
	if scored.Load()+absorbed.Load() != racers {
		t.Fatalf("scored=%d absorbed=%d, want total %d", scored.Load(), absorbed.Load(), racers)
	}
}

func TestSecondSubmitReturnsStoredScore(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	first, err := c.Submit(true)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := c.Submit(true)
	if err != nil {
		t.Fatalf("duplicate Submit: %v", err)
	}
	if first != second {
		t.Fatal("duplicate submit must return the stored score")
	}
	if got := sub.callCount(); got != 1 {
		t.Fatalf("terminal write performed %d times, want 1", got)
	}
}

func TestTimerExpiryAutoSubmits(t *testing.T) {
	sub := &fakeSubmitter{}
	attempt := testAttempt()
	assessment := testAssessment()
	// Two seconds left on the clock; with millisecond ticks this elapses
	// almost immediately.
	attempt.StartedAt = time.Now().Add(-time.Duration(assessment.DurationMinutes*60-2) * time.Second)

	c := NewController(attempt, assessment, sub, 60, fastOpts())
	c.Run()

	select {
	case event := <-c.Events():
		if !event.Auto {
			t.Error("timer expiry must submit as auto")
		}
		if event.Err != nil {
			t.Errorf("unexpected submit error: %v", event.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired the auto-submit")
	}
	if got := c.CurrentState(); got != StateResulted {
		t.Fatalf("state after expiry = %v, want resulted", got)
	}
}

func TestResumePastDeadlineSubmitsImmediately(t *testing.T) {
	sub := &fakeSubmitter{}
	attempt := testAttempt()
	assessment := testAssessment()
	attempt.StartedAt = time.Now().Add(-time.Duration(assessment.DurationMinutes+5) * time.Minute)

	c := NewController(attempt, assessment, sub, 60, fastOpts())
	if got := c.RemainingSeconds(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
	c.Run()

	select {
	case event := <-c.Events():
		if !event.Auto {
			t.Error("deadline overrun must submit as auto")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("overdue session never auto-submitted")
	}
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	sub := &fakeSubmitter{failFirst: 2}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	score, err := c.Submit(true)
	if err != nil {
		t.Fatalf("Submit after retries: %v", err)
	}
	if score == nil {
		t.Fatal("expected a score after retried submit")
	}
	if got := sub.callCount(); got != 3 {
		t.Fatalf("submitter called %d times, want 3", got)
	}
}

func TestSubmitGivesUpAfterRetryBudget(t *testing.T) {
	sub := &fakeSubmitter{failFirst: 100}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	if _, err := c.Submit(true); err == nil {
		t.Fatal("expected failure once the retry budget is spent")
	}
	if got := sub.callCount(); got != 3 {
		t.Fatalf("submitter called %d times, want 3", got)
	}
	if got := c.CurrentState(); got != StateFailed {
		t.Fatalf("state after exhausted retries = %v, want failed", got)
	}
}

func TestSubmitDoesNotRetryConflicts(t *testing.T) {
	sub := &fakeSubmitter{err: service.NewConflictError("attempt", "already graded")}
	c := NewController(testAttempt(), testAssessment(), sub, 60, fastOpts())

	if _, err := c.Submit(true); !service.IsConflict(err) {
		t.Fatalf("expected the conflict to surface, got %v", err)
	}
	if got := sub.callCount(); got != 1 {
		t.Fatalf("conflicts must not be retried; submitter called %d times", got)
	}
}

func TestNewControllerFallsBackToDefaultDuration(t *testing.T) {
	sub := &fakeSubmitter{}
	assessment := testAssessment()
	assessment.DurationMinutes = 0

	c := NewController(testAttempt(), assessment, sub, 45, fastOpts())
	if got := c.RemainingSeconds(); got < 45*60-2 || got > 45*60 {
		t.Fatalf("remaining = %d, want about %d", got, 45*60)
	}
}
