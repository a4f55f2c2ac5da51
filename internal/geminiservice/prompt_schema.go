package geminiservice

import (
	"fmt"
	"strings"

	"SymptoScan/internal/geolocation"
)

// This file stores the prompt templates and the fallback strings shown when
// the model returns nothing.

const (
	// DiagnosisPlaceholder replaces an empty diagnosis response.
	DiagnosisPlaceholder = "Could not determine diagnosis"

	// RecommendationPlaceholder replaces an empty recommendation response.
	RecommendationPlaceholder = "No recommendations available"
)

// DiagnosisPromptTemplate asks for a differential-diagnosis style answer.
// %s is the user's symptom text.
const DiagnosisPromptTemplate = `You are a careful medical assistant. A person describes the following symptoms:

%s

List the most likely conditions that could explain these symptoms, most likely first.
For each condition give one short sentence explaining why it fits.
Do not claim certainty. Keep the answer under 200 words.`

// RecommendationPromptTemplate asks for self-care and referral advice.
// %s is the user's symptom text; the location clause is appended separately.
const RecommendationPromptTemplate = `A person describes the following symptoms:

%s

Give practical self-care recommendations they can follow right now, and say clearly
which warning signs mean they should see a doctor or go to emergency care.
Keep the answer under 200 words.`

// locationClause is appended to the recommendation prompt when a coordinate
// is known. Both values are rendered with four decimals.
const locationClause = `

The person is currently located at latitude %.4f, longitude %.4f.
Mention the kind of nearby healthcare facility they should look for.`

// BuildDiagnosisPrompt renders the diagnosis prompt for symptoms.
func BuildDiagnosisPrompt(symptoms string) string {
	return fmt.Sprintf(DiagnosisPromptTemplate, strings.TrimSpace(symptoms))
}

// BuildRecommendationPrompt renders the recommendation prompt, embedding loc
// when it is non-nil.
func BuildRecommendationPrompt(symptoms string, loc *geolocation.Coordinate) string {
	prompt := fmt.Sprintf(RecommendationPromptTemplate, strings.TrimSpace(symptoms))
	if loc != nil {
		prompt += fmt.Sprintf(locationClause, loc.Latitude, loc.Longitude)
	}
	return prompt
}
