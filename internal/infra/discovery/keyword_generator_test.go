package discovery

import (
	"context"
	"testing"

	"showup/config"
	"showup/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordGenerator_Generate(t *testing.T) {
	gen := NewKeywordGenerator()

	tests := []struct {
		message  string
		title    string
		kind     entity.ChallengeType
		duration int
		deposit  float64
	}{
		{"I want to build a skincare routine", "Daily Skincare Ritual", entity.ChallengeTypeHabit, 14, 50},
		{"my SKIN CARE is a mess", "Daily Skincare Ritual", entity.ChallengeTypeHabit, 14, 50},
		{"I keep skipping the gym", "Daily Movement Practice", entity.ChallengeTypeFitness, 7, 25},
		{"Meditation sounds nice", "Daily Mindfulness Practice", entity.ChallengeTypeWellness, 21, 75},
		{"I want to finish a book", "Daily Reading Habit", entity.ChallengeTypeLearning, 14, 50},
		{"drink more water", "Hydration Hero", entity.ChallengeTypeWellness, 7, 25},
		{"go to sleep earlier", "Consistent Sleep Schedule", entity.ChallengeTypeWellness, 14, 75},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			text, suggestion, err := gen.Generate(context.Background(), nil, tt.message)
			require.NoError(t, err)
			require.NotNil(t, suggestion)

			assert.NotEmpty(t, text)
			assert.Equal(t, tt.title, suggestion.Title)
			assert.Equal(t, tt.kind, suggestion.Type)
			assert.Equal(t, entity.FrequencyDaily, suggestion.SuggestedFrequency)
			assert.Equal(t, tt.duration, suggestion.SuggestedDuration)
			assert.InDelta(t, tt.deposit, suggestion.SuggestedDeposit, 0.001)
			assert.GreaterOrEqual(t, suggestion.SuggestedDeposit, 25.0)
			assert.LessOrEqual(t, suggestion.SuggestedDeposit, 75.0)
		})
	}
}

func TestKeywordGenerator_ClarifiesWithoutKeyword(t *testing.T) {
	text, suggestion, err := NewKeywordGenerator().Generate(context.Background(), nil, "something about my cat")
	require.NoError(t, err)

	assert.Nil(t, suggestion)
	assert.Equal(t, clarifyingResponse, text)
}

func TestKeywordGenerator_ReturnsIndependentSuggestions(t *testing.T) {
	gen := NewKeywordGenerator()

	_, first, err := gen.Generate(context.Background(), nil, "skincare")
	require.NoError(t, err)
	first.Title = "mutated"

	_, second, err := gen.Generate(context.Background(), nil, "skincare")
	require.NoError(t, err)
	assert.Equal(t, "Daily Skincare Ritual", second.Title)
}

func TestNewResponseGenerator(t *testing.T) {
	gen, err := NewResponseGenerator(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, keywordModel, gen.Model())

	_, err = NewResponseGenerator(&config.Config{Discovery: &config.DiscoveryConfig{Strategy: "oracle"}})
	assert.ErrorContains(t, err, "unknown discovery strategy")
}
