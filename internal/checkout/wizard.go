// Package checkout implements the multi-step checkout wizard.
package checkout

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrStepInvalid      = errors.New("current step is not complete")
	ErrUnknownStep      = errors.New("unknown checkout step")
	ErrStepNotReached   = errors.New("checkout step not reached yet")
	ErrPayloadType      = errors.New("unexpected payload for step")
	ErrNotAuthenticated = errors.New("sign in required for this step")
	ErrLastStep         = errors.New("already at the last step")
)

// Step is one page of the wizard. Validate reports whether a submitted
// payload completes the step; a nil Validate accepts any payload.
type Step struct {
	Label        string
	RequiresAuth bool
	Validate     func(payload any) error
}

// Step indices of DefaultSteps.
const (
	StepShipping = iota + 1
	StepPaymentOption
	StepReview
	StepOrderSubmission
	StepProcessing
	StepDone
)

// Expect builds a validator that accepts payloads of type T for which valid
// returns true.
func Expect[T any](valid func(T) bool) func(any) error {
	return func(payload any) error {
		v, ok := payload.(T)
		if !ok {
			if p, isPtr := payload.(*T); isPtr && p != nil {
				v, ok = *p, true
			}
		}
		if !ok {
			var zero T
			return fmt.Errorf("%w: want %T, got %T", ErrPayloadType, zero, payload)
		}
		if valid != nil && !valid(v) {
			return ErrStepInvalid
		}
		return nil
	}
}

// DefaultSteps is the storefront's six-step BNPL checkout.
func DefaultSteps() []Step {
	return []Step{
		{Label: "Shipping", Validate: Expect(Shipping.Valid)},
		{Label: "Payment Option", Validate: Expect(PaymentOption.Valid)},
		{Label: "Review", Validate: Expect(Review.Valid)},
		{Label: "Order Submission", RequiresAuth: true, Validate: Expect(OrderPayload.Valid)},
		{Label: "Processing", RequiresAuth: true, Validate: Expect[OrderResponse](nil)},
		{Label: "Done"},
	}
}

// Wizard is the checkout state machine. Steps are numbered from 1.
type Wizard struct {
	mu            sync.RWMutex
	steps         []Step
	current       int
	data          map[int]any
	authenticated bool
}

// NewWizard builds a wizard over steps, or DefaultSteps when none are given.
func NewWizard(steps ...Step) *Wizard {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	return &Wizard{
		steps:   steps,
		current: 1,
		data:    make(map[int]any),
	}
}

func (w *Wizard) Len() int { return len(w.steps) }

func (w *Wizard) Current() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Wizard) Step(n int) (Step, bool) {
	if n < 1 || n > len(w.steps) {
		return Step{}, false
	}
	return w.steps[n-1], true
}

// Done reports whether the wizard reached its terminal step.
func (w *Wizard) Done() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current == len(w.steps)
}

// SetAuthenticated gates steps that require a signed-in customer.
func (w *Wizard) SetAuthenticated(ok bool) {
	w.mu.Lock()
	w.authenticated = ok
	w.mu.Unlock()
}

// Submit validates payload against step and stores it. Only the current
// step and steps already passed accept data.
func (w *Wizard) Submit(step int, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.validateLocked(step, payload); err != nil {
		return err
	}
	w.data[step] = payload
	return nil
}

// Validate runs Submit's checks without storing payload.
func (w *Wizard) Validate(step int, payload any) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.validateLocked(step, payload)
}

func (w *Wizard) validateLocked(step int, payload any) error {
	s, ok := w.Step(step)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	if step > w.current {
		return fmt.Errorf("%w: %d", ErrStepNotReached, step)
	}
	if s.RequiresAuth && !w.authenticated {
		return ErrNotAuthenticated
	}
	if s.Validate != nil {
		if err := s.Validate(payload); err != nil {
			return fmt.Errorf("step %d (%s): %w", step, s.Label, err)
		}
	}
	return nil
}

// CanAdvance reports whether the current step holds valid data.
func (w *Wizard) CanAdvance() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.canAdvanceLocked() == nil
}

func (w *Wizard) canAdvanceLocked() error {
	if w.current >= len(w.steps) {
		return ErrLastStep
	}
	s := w.steps[w.current-1]
	if s.RequiresAuth && !w.authenticated {
		return ErrNotAuthenticated
	}
	if s.Validate == nil {
		return nil
	}
	payload, ok := w.data[w.current]
	if !ok {
		return ErrStepInvalid
	}
	return s.Validate(payload)
}

// Next moves to the following step when the current one is complete and
// returns the new step.
func (w *Wizard) Next() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.canAdvanceLocked(); err != nil {
		if errors.Is(err, ErrLastStep) || errors.Is(err, ErrNotAuthenticated) {
			return w.current, err
		}
		return w.current, fmt.Errorf("%w: step %d", ErrStepInvalid, w.current)
	}
	w.current++
	return w.current, nil
}

// Back moves to the previous step, keeping its data. It stays on step 1.
func (w *Wizard) Back() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current > 1 {
		w.current--
	}
	return w.current
}

// Data returns the payload stored for step.
func (w *Wizard) Data(step int) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.data[step]
	return v, ok
}

// StepData returns step's payload as T, or the zero value when it is absent
// or of another type.
func StepData[T any](w *Wizard, step int) (T, bool) {
	var zero T
	v, ok := w.Data(step)
	if !ok {
		return zero, false
	}
	switch t := v.(type) {
	case T:
		return t, true
	case *T:
		if t != nil {
			return *t, true
		}
	}
	return zero, false
}

// Reset clears every step's data and returns to step 1.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = make(map[int]any)
	w.current = 1
}

// State is a read-only snapshot for rendering.
type State struct {
	Current    int      `json:"current"`
	Total      int      `json:"total"`
	Label      string   `json:"label"`
	Labels     []string `json:"labels"`
	Completed  []int    `json:"completed"`
	CanAdvance bool     `json:"canAdvance"`
	Done       bool     `json:"done"`
}

func (w *Wizard) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	st := State{
		Current:    w.current,
		Total:      len(w.steps),
		Label:      w.steps[w.current-1].Label,
		Labels:     make([]string, 0, len(w.steps)),
		Completed:  []int{},
		CanAdvance: w.canAdvanceLocked() == nil,
		Done:       w.current == len(w.steps),
	}
	for i, s := range w.steps {
		st.Labels = append(st.Labels, s.Label)
		if _, ok := w.data[i+1]; ok && i+1 < w.current {
			st.Completed = append(st.Completed, i+1)
		}
	}
	return st
}
