package geminiservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SymptoScan/internal/geolocation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrEmptySymptoms is returned when Assess is called with blank input.
var ErrEmptySymptoms = errors.New("symptom description is empty")

const (
	apiKeyUserMessage  = "Invalid or missing API key. Please check your configuration."
	genericUserMessage = "Something went wrong while analyzing your symptoms. Please try again."
)

// Assessment is the outcome of one successful round trip.
type Assessment struct {
	Diagnosis      string `json:"diagnosis"`
	Recommendation string `json:"recommendation"`
}

// Orchestrator builds the two prompts and dispatches them to a TextGenerator.
type Orchestrator struct {
	gen        TextGenerator
	concurrent bool
	logger     *zerolog.Logger
}

// NewOrchestrator returns an Orchestrator that dispatches sequentially.
func NewOrchestrator(gen TextGenerator, logger *zerolog.Logger) *Orchestrator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Orchestrator{gen: gen, logger: logger}
}

// WithConcurrentDispatch switches the orchestrator to issuing both calls at
// once and waiting for both. A failing diagnosis call then no longer prevents
// the recommendation call from being sent.
func (o *Orchestrator) WithConcurrentDispatch(enabled bool) *Orchestrator {
	o.concurrent = enabled
	return o
}

// Assess sends the diagnosis prompt, then the recommendation prompt. The
// first error aborts the flow and is returned as is.
func (o *Orchestrator) Assess(ctx context.Context, symptoms string, loc *geolocation.Coordinate) (Assessment, error) {
	if strings.TrimSpace(symptoms) == "" {
		return Assessment{}, ErrEmptySymptoms
	}

	diagnosisPrompt := BuildDiagnosisPrompt(symptoms)
	recommendationPrompt := BuildRecommendationPrompt(symptoms, loc)

	o.logger.Info().
		Bool("has_location", loc != nil).
		Bool("concurrent", o.concurrent).
		Msg("Sending symptom prompts to Gemini")

	var result Assessment
	var err error
	if o.concurrent {
		result, err = o.dispatchConcurrent(ctx, diagnosisPrompt, recommendationPrompt)
	} else {
		result, err = o.dispatchSequential(ctx, diagnosisPrompt, recommendationPrompt)
	}
	if err != nil {
		o.logger.Error().Err(err).Msg("Symptom assessment failed")
		return Assessment{}, err
	}

	if strings.TrimSpace(result.Diagnosis) == "" {
		result.Diagnosis = DiagnosisPlaceholder
	}
	if strings.TrimSpace(result.Recommendation) == "" {
		result.Recommendation = RecommendationPlaceholder
	}

	o.logger.Info().Msg("Symptom assessment completed")
	return result, nil
}

func (o *Orchestrator) dispatchSequential(ctx context.Context, diagnosisPrompt, recommendationPrompt string) (Assessment, error) {
	diagnosis, err := o.gen.GenerateText(ctx, diagnosisPrompt)
	if err != nil {
		return Assessment{}, fmt.Errorf("diagnosis request: %w", err)
	}

	recommendation, err := o.gen.GenerateText(ctx, recommendationPrompt)
	if err != nil {
		return Assessment{}, fmt.Errorf("recommendation request: %w", err)
	}

	return Assessment{Diagnosis: diagnosis, Recommendation: recommendation}, nil
}

func (o *Orchestrator) dispatchConcurrent(ctx context.Context, diagnosisPrompt, recommendationPrompt string) (Assessment, error) {
	var result Assessment
	g, grpCtx := errgroup.WithContext(ctx)

	// Each goroutine writes a distinct field, so no lock is needed.
	g.Go(func() error {
		text, err := o.gen.GenerateText(grpCtx, diagnosisPrompt)
		if err != nil {
			return fmt.Errorf("diagnosis request: %w", err)
		}
		result.Diagnosis = text
		return nil
	})
	g.Go(func() error {
		text, err := o.gen.GenerateText(grpCtx, recommendationPrompt)
		if err != nil {
			return fmt.Errorf("recommendation request: %w", err)
		}
		result.Recommendation = text
		return nil
	})

	if err := g.Wait(); err != nil {
		return Assessment{}, err
	}
	return result, nil
}

// UserMessage turns an assessment error into text that is safe to show.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return apiKeyUserMessage
	}

	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimSpace(strings.TrimPrefix(msg, "Exception:"))

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "api key") || strings.Contains(lower, "api_key") {
		return apiKeyUserMessage
	}
	if msg == "" {
		return genericUserMessage
	}
	return msg
}
