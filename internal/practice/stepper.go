package practice

import (
	"errors"
	"strings"
	"sync"
	"time"

	"grammartutor/internal/lessons"
)

var (
	ErrCompleted     = errors.New("practice already completed")
	ErrNotCompleted  = errors.New("practice not completed")
	ErrInvalidAnswer = errors.New("invalid answer")
	ErrJumpDisabled  = errors.New("direct navigation disabled for this practice")
	ErrOutOfRange    = errors.New("step out of range")
)

const (
	DefaultAdvanceDelay  = 1200 * time.Millisecond
	DefaultShakeDuration = 600 * time.Millisecond
)

// Clock schedules the stepper's delayed transitions.
// AfterFunc must run f on another goroutine or later, never synchronously.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Outcome is the result of a selection.
type Outcome int

const (
	// OutcomeIgnored means the step was already answered and is waiting to advance.
	OutcomeIgnored Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	}
	return "ignored"
}

// Answer is a learner's selection. Choice widgets use Choice, the sentence
// builder uses Words in the order the learner placed them.
type Answer struct {
	Choice int      `json:"choice"`
	Words  []string `json:"words,omitempty"`
}

// State is a point-in-time view of a stepper.
type State struct {
	Seq          uint64 `json:"seq"`
	Index        int    `json:"index"`
	Total        int    `json:"total"`
	Answered     bool   `json:"answered"`
	Success      bool   `json:"success"`
	Shaking      bool   `json:"shaking"`
	ShakeChoice  int    `json:"shake_choice"`
	Completed    bool   `json:"completed"`
	StepMistakes []int  `json:"step_mistakes"`
	Solved       []bool `json:"solved"`
}

// Mistakes is the total number of wrong selections.
func (s State) Mistakes() int {
	n := 0
	for _, m := range s.StepMistakes {
		n += m
	}
	return n
}

// FirstTry counts steps solved without a mistake. Steps skipped with a jump
// were never solved and do not count.
func (s State) FirstTry() int {
	n := 0
	for i, solved := range s.Solved {
		if solved && i < len(s.StepMistakes) && s.StepMistakes[i] == 0 {
			n++
		}
	}
	return n
}

type Options struct {
	AdvanceDelay  time.Duration
	ShakeDuration time.Duration
	AllowJump     bool
	Clock         Clock

	// OnChange receives every new state, outside the stepper lock.
	// States may arrive out of order from timer goroutines; compare Seq.
	OnChange func(State)

	// OnComplete runs when the learner continues from the summary screen.
	OnComplete func()
}

// Stepper walks a learner through the steps of one practice.
//
// It is InProgress(i) for 0 <= i < N and Completed once the index reaches N.
// A correct selection marks the step answered and advances after AdvanceDelay;
// an incorrect one flags the chosen option for ShakeDuration and stays put.
type Stepper struct {
	mu        sync.Mutex
	widget    lessons.Widget
	steps     []lessons.Step
	opts      Options
	allowJump bool

	seq      uint64
	index    int
	answered bool
	success  bool
	shaking  bool
	shakeAt  int
	mistakes []int
	solved   []bool

	// gen invalidates pending advance timers on jump and reset; shakeGen does
	// the same for shake timers.
	gen          uint64
	shakeGen     uint64
	advanceTimer Timer
	shakeTimer   Timer
}

func NewStepper(p *lessons.Practice, opts Options) *Stepper {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	s := &Stepper{opts: opts}
	s.load(p)
	return s
}

func (s *Stepper) load(p *lessons.Practice) {
	s.widget = p.Widget
	s.steps = p.Steps
	s.allowJump = s.opts.AllowJump || p.AllowJump
	s.index = 0
	s.mistakes = make([]int, len(p.Steps))
	s.solved = make([]bool, len(p.Steps))
	s.clearLocked()
}

// clearLocked drops transient flags and invalidates pending timers.
func (s *Stepper) clearLocked() {
	s.gen++
	s.shakeGen++
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	if s.shakeTimer != nil {
		s.shakeTimer.Stop()
		s.shakeTimer = nil
	}
	s.answered = false
	s.success = false
	s.shaking = false
	s.shakeAt = -1
}

// Step returns the current step and false once completed.
func (s *Stepper) Step() (lessons.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.steps) {
		return lessons.Step{}, false
	}
	return s.steps[s.index], true
}

func (s *Stepper) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Stepper) stateLocked() State {
	m := make([]int, len(s.mistakes))
	copy(m, s.mistakes)
	solved := make([]bool, len(s.solved))
	copy(solved, s.solved)
	return State{
		Seq:          s.seq,
		Index:        s.index,
		Total:        len(s.steps),
		Answered:     s.answered,
		Success:      s.success,
		Shaking:      s.shaking,
		ShakeChoice:  s.shakeAt,
		Completed:    s.index >= len(s.steps),
		StepMistakes: m,
		Solved:       solved,
	}
}

// changedLocked bumps the sequence number and returns the state to publish.
func (s *Stepper) changedLocked() State {
	s.seq++
	return s.stateLocked()
}

func (s *Stepper) publish(st State) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
}

// Select validates an answer for the current step.
func (s *Stepper) Select(a Answer) (Outcome, error) {
	s.mu.Lock()
	if s.index >= len(s.steps) {
		s.mu.Unlock()
		return OutcomeIgnored, ErrCompleted
	}
	if s.answered {
		s.mu.Unlock()
		return OutcomeIgnored, nil
	}

	ok, err := check(s.widget, s.steps[s.index], a)
	if err != nil {
		s.mu.Unlock()
		return OutcomeIgnored, err
	}

	var outcome Outcome
	if ok {
		outcome = OutcomeCorrect
		s.answered = true
		s.success = true
		s.stopShakeLocked()
		gen := s.gen
		s.advanceTimer = s.opts.Clock.AfterFunc(s.opts.AdvanceDelay, func() { s.advance(gen) })
	} else {
		outcome = OutcomeIncorrect
		s.mistakes[s.index]++
		s.stopShakeLocked()
		s.shaking = true
		s.shakeAt = -1
		if s.widget.UsesChoices() {
			s.shakeAt = a.Choice
		}
		sg := s.shakeGen
		s.shakeTimer = s.opts.Clock.AfterFunc(s.opts.ShakeDuration, func() { s.unshake(sg) })
	}
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
	return outcome, nil
}

func (s *Stepper) stopShakeLocked() {
	s.shakeGen++
	if s.shakeTimer != nil {
		s.shakeTimer.Stop()
		s.shakeTimer = nil
	}
	s.shaking = false
	s.shakeAt = -1
}

func (s *Stepper) advance(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.answered {
		s.mu.Unlock()
		return
	}
	s.advanceTimer = nil
	s.solved[s.index] = true
	s.index++
	s.clearLocked()
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

func (s *Stepper) unshake(gen uint64) {
	s.mu.Lock()
	if gen != s.shakeGen || !s.shaking {
		s.mu.Unlock()
		return
	}
	s.shakeTimer = nil
	s.shaking = false
	s.shakeAt = -1
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

// JumpTo moves straight to step i. A pending advance is cancelled and the
// answered, success and shake flags are cleared; mistakes are kept.
func (s *Stepper) JumpTo(i int) error {
	s.mu.Lock()
	switch {
	case !s.allowJump:
		s.mu.Unlock()
		return ErrJumpDisabled
	case s.index >= len(s.steps):
		s.mu.Unlock()
		return ErrCompleted
	case i < 0 || i >= len(s.steps):
		s.mu.Unlock()
		return ErrOutOfRange
	}
	s.clearLocked()
	s.index = i
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
	return nil
}

// Reset returns to the first step and forgets all mistakes.
func (s *Stepper) Reset() {
	s.mu.Lock()
	s.index = 0
	s.mistakes = make([]int, len(s.steps))
	s.solved = make([]bool, len(s.steps))
	s.clearLocked()
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

// Continue leaves the summary screen by invoking the completion callback.
func (s *Stepper) Continue() error {
	s.mu.Lock()
	done := s.index >= len(s.steps)
	cb := s.opts.OnComplete
	s.mu.Unlock()

	if !done {
		return ErrNotCompleted
	}
	if cb != nil {
		cb()
	}
	return nil
}

// Stop cancels pending timers and drops transient flags without publishing.
func (s *Stepper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// restore places a rebuilt stepper at a saved position.
func (s *Stepper) restore(index int, mistakes []int, solved []bool, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(s.steps) {
		index = len(s.steps)
	}
	s.index = index
	s.seq = seq
	copy(s.mistakes, mistakes)
	copy(s.solved, solved)
	s.clearLocked()
}

func check(w lessons.Widget, step lessons.Step, a Answer) (bool, error) {
	if w.UsesChoices() {
		if a.Choice < 0 || a.Choice >= len(step.Choices) {
			return false, ErrInvalidAnswer
		}
		return step.Choices[a.Choice].IsCorrect, nil
	}

	if len(a.Words) == 0 {
		return false, ErrInvalidAnswer
	}
	if len(a.Words) != len(step.Correct) {
		return false, nil
	}
	for i, word := range a.Words {
		if strings.TrimSpace(word) != step.Correct[i] {
			return false, nil
		}
	}
	return true, nil
}
