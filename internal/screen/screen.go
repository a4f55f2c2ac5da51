/*
Package screen implements the symptom screen: a small state machine that
moves between idle, loading, success and error, and renders a view snapshot
on every transition.
*/
package screen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"SymptoScan/internal/geminiservice"
	"SymptoScan/internal/geolocation"
	"github.com/rs/zerolog"
)

var (
	// ErrSymptomsRequired is returned by Submit when the text is blank.
	ErrSymptomsRequired = errors.New("symptoms required")

	// ErrSubmissionInProgress is returned while a previous submission is loading.
	ErrSubmissionInProgress = errors.New("submission in progress")
)

// EmptySymptomsMessage is the inline validation message for blank input.
const EmptySymptomsMessage = "Please describe your symptoms"

// Phase is the screen's position in its state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Assessor produces the diagnosis and recommendation for a submission.
type Assessor interface {
	Assess(ctx context.Context, symptoms string, loc *geolocation.Coordinate) (geminiservice.Assessment, error)
}

// View is what a client needs to draw the screen.
type View struct {
	ScreenID       string                  `json:"screen_id"`
	Phase          Phase                   `json:"phase"`
	Symptoms       string                  `json:"symptoms"`
	Loading        bool                    `json:"loading"`
	SubmitEnabled  bool                    `json:"submit_enabled"`
	ShowResults    bool                    `json:"show_results"`
	Diagnosis      string                  `json:"diagnosis,omitempty"`
	Recommendation string                  `json:"recommendation,omitempty"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	Location       *geolocation.Coordinate `json:"location,omitempty"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// Screen holds the state of one symptom screen.
type Screen struct {
	mu sync.Mutex

	id       string
	assessor Assessor
	location *geolocation.Coordinate
	render   func(View)
	logger   zerolog.Logger
	disposed atomic.Bool

	symptoms       string
	phase          Phase
	diagnosis      string
	recommendation string
	errorMessage   string
	updatedAt      time.Time
}

// New creates an idle screen. loc is the coordinate acquired at
// initialization and never changes afterwards. render may be nil.
func New(id string, assessor Assessor, loc *geolocation.Coordinate, render func(View), logger zerolog.Logger) *Screen {
	if render == nil {
		render = func(View) {}
	}
	return &Screen{
		id:        id,
		assessor:  assessor,
		location:  loc,
		render:    render,
		logger:    logger.With().Str("screen_id", id).Logger(),
		phase:     PhaseIdle,
		updatedAt: time.Now(),
	}
}

// ID returns the screen identifier.
func (s *Screen) ID() string { return s.id }

// Location returns the coordinate acquired at initialization, if any.
func (s *Screen) Location() *geolocation.Coordinate {
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// Disposed reports whether the screen has left its registry for good.
func (s *Screen) Disposed() bool { return s.disposed.Load() }

// markDisposed reports whether this call did the disposing.
func (s *Screen) markDisposed() bool { return s.disposed.CompareAndSwap(false, true) }

// SetSymptoms replaces the input text.
func (s *Screen) SetSymptoms(text string) (View, error) {
	s.mu.Lock()
	if s.phase == PhaseLoading {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrSubmissionInProgress
	}
	s.symptoms = text
	s.updatedAt = time.Now()
	v := s.viewLocked()
	s.mu.Unlock()

	s.render(v)
	return v, nil
}

// Submit runs one submission of the current text to completion. Assessment
// failures do not produce an error; they move the screen to PhaseError and
// the returned view carries the message.
func (s *Screen) Submit(ctx context.Context) (View, error) {
	return s.submit(ctx, nil)
}

// SubmitText replaces the input text and submits it in one step, so a
// concurrent edit cannot change what gets assessed.
func (s *Screen) SubmitText(ctx context.Context, text string) (View, error) {
	return s.submit(ctx, &text)
}

func (s *Screen) submit(ctx context.Context, text *string) (View, error) {
	s.mu.Lock()
	if s.phase == PhaseLoading {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrSubmissionInProgress
	}
	if text != nil {
		s.symptoms = *text
	}

	symptoms := s.symptoms
	if IsBlank(symptoms) {
		s.setErrorLocked(EmptySymptomsMessage)
		v := s.viewLocked()
		s.mu.Unlock()
		s.render(v)
		return v, ErrSymptomsRequired
	}

	s.phase = PhaseLoading
	s.diagnosis, s.recommendation, s.errorMessage = "", "", ""
	s.updatedAt = time.Now()
	loading := s.viewLocked()
	s.mu.Unlock()
	s.render(loading)

	result, err := s.assessor.Assess(ctx, symptoms, s.Location())

	s.mu.Lock()
	if err != nil {
		s.logger.Debug().Err(err).Msg("Symptom submission ended in error")
		s.setErrorLocked(geminiservice.UserMessage(err))
	} else {
		s.phase = PhaseSuccess
		s.diagnosis = result.Diagnosis
		s.recommendation = result.Recommendation
		s.updatedAt = time.Now()
	}
	v := s.viewLocked()
	s.mu.Unlock()

	s.render(v)
	return v, nil
}

// IsBlank reports whether text would fail submission validation.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// View returns the current snapshot.
func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Screen) setErrorLocked(msg string) {
	s.phase = PhaseError
	s.diagnosis, s.recommendation = "", ""
	s.errorMessage = msg
	s.updatedAt = time.Now()
}

func (s *Screen) viewLocked() View {
	v := View{
		ScreenID:      s.id,
		Phase:         s.phase,
		Symptoms:      s.symptoms,
		Loading:       s.phase == PhaseLoading,
		SubmitEnabled: s.phase != PhaseLoading,
		Location:      s.Location(),
		UpdatedAt:     s.updatedAt,
	}
	switch s.phase {
	case PhaseSuccess:
		v.ShowResults = true
		v.Diagnosis = s.diagnosis
		v.Recommendation = s.recommendation
	case PhaseError:
		v.ErrorMessage = s.errorMessage
	}
	return v
}
