package geminiservice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"SymptoScan/internal/geolocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers prompts in call order and records what it saw.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

type reply struct {
	text string
	err  error
}

func (g *scriptedGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if i >= len(g.replies) {
		return "", errors.New("unexpected call")
	}
	return g.replies[i].text, g.replies[i].err
}

// promptGenerator answers by prompt kind, for the concurrent mode where order
// is not fixed.
type promptGenerator struct {
	mu        sync.Mutex
	diagnosis reply
	recommend reply
	calls     int
}

func (g *promptGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if strings.Contains(prompt, "most likely conditions") {
		return g.diagnosis.text, g.diagnosis.err
	}
	return g.recommend.text, g.recommend.err
}

func TestAssess_EmptyInputMakesNoCalls(t *testing.T) {
	gen := &scriptedGenerator{}
	o := NewOrchestrator(gen, nil)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := o.Assess(context.Background(), in, nil)
		assert.ErrorIs(t, err, ErrEmptySymptoms)
	}
	assert.Empty(t, gen.prompts)
}

func TestAssess_TwoCallsInFixedOrder(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "Migraine"}, {text: "Rest in a dark room"}}}
	o := NewOrchestrator(gen, nil)

	got, err := o.Assess(context.Background(), "throbbing headache", nil)

	require.NoError(t, err)
	assert.Equal(t, Assessment{Diagnosis: "Migraine", Recommendation: "Rest in a dark room"}, got)
	require.Len(t, gen.prompts, 2)
	assert.Equal(t, BuildDiagnosisPrompt("throbbing headache"), gen.prompts[0])
	assert.Equal(t, BuildRecommendationPrompt("throbbing headache", nil), gen.prompts[1])
}

func TestAssess_DiagnosisFailureSkipsRecommendation(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{err: errors.New("quota exceeded")}, {text: "never"}}}
	o := NewOrchestrator(gen, nil)

	got, err := o.Assess(context.Background(), "fever", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, Assessment{}, got)
	assert.Len(t, gen.prompts, 1)
}

func TestAssess_RecommendationFailureDropsPartialResult(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "Flu"}, {err: errors.New("network down")}}}

	got, err := NewOrchestrator(gen, nil).Assess(context.Background(), "fever", nil)

	require.Error(t, err)
	assert.Equal(t, Assessment{}, got)
}

func TestAssess_PlaceholdersForEmptyPayloads(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: ""}, {text: "  "}}}

	got, err := NewOrchestrator(gen, nil).Assess(context.Background(), "dizzy", nil)

	require.NoError(t, err)
	assert.Equal(t, "Could not determine diagnosis", got.Diagnosis)
	assert.Equal(t, "No recommendations available", got.Recommendation)
}

func TestAssess_LocationInRecommendationPromptOnly(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "a"}, {text: "b"}}}
	loc := &geolocation.Coordinate{Latitude: 37.774929, Longitude: -122.419416}

	_, err := NewOrchestrator(gen, nil).Assess(context.Background(), "sore throat", loc)

	require.NoError(t, err)
	require.Len(t, gen.prompts, 2)
	assert.NotContains(t, gen.prompts[0], "37.7749")
	assert.Contains(t, gen.prompts[1], "37.7749")
	assert.Contains(t, gen.prompts[1], "-122.4194")
	assert.NotContains(t, gen.prompts[1], "37.77493")
}

func TestBuildRecommendationPromptWithoutLocation(t *testing.T) {
	p := BuildRecommendationPrompt("  rash on arm ", nil)
	assert.Contains(t, p, "rash on arm")
	assert.NotContains(t, p, "latitude")
}

func TestAssess_ConcurrentJoinsBoth(t *testing.T) {
	gen := &promptGenerator{diagnosis: reply{text: "Allergy"}, recommend: reply{text: "Antihistamine"}}
	o := NewOrchestrator(gen, nil).WithConcurrentDispatch(true)

	got, err := o.Assess(context.Background(), "sneezing", nil)

	require.NoError(t, err)
	assert.Equal(t, Assessment{Diagnosis: "Allergy", Recommendation: "Antihistamine"}, got)
	assert.Equal(t, 2, gen.calls)
}

func TestAssess_ConcurrentFailureReturnsNoPartialResult(t *testing.T) {
	gen := &promptGenerator{diagnosis: reply{text: "Allergy"}, recommend: reply{err: errors.New("503")}}

	got, err := NewOrchestrator(gen, nil).WithConcurrentDispatch(true).Assess(context.Background(), "sneezing", nil)

	require.Error(t, err)
	assert.Equal(t, Assessment{}, got)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing key sentinel", ErrMissingAPIKey, apiKeyUserMessage},
		{"wrapped missing key", errors.Join(errors.New("diagnosis request"), ErrMissingAPIKey), apiKeyUserMessage},
		{"api key text", errors.New("gemini api error: API key not valid"), apiKeyUserMessage},
		{"api_key text", errors.New("missing API_KEY header"), apiKeyUserMessage},
		{"exception prefix", errors.New("Exception: network unreachable"), "network unreachable"},
		{"bare exception", errors.New("Exception:"), genericUserMessage},
		{"plain", errors.New("quota exceeded"), "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
