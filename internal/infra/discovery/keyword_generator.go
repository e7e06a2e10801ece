// Package discovery holds the assistant response strategies used during challenge discovery.
package discovery

import (
	"context"
	"strings"

	"showup/config"
	"showup/internal/domain/constants"
	"showup/internal/domain/entity"
	"showup/internal/domain/service"

	"github.com/pkg/errors"
)

const keywordModel = "keyword-coach-v1"

const clarifyingResponse = `That's interesting! Tell me more about what specifically you'd like to work on.

Some questions to consider:
- Is this something you want to do daily, or a few times a week?
- What would success look like for you?
- What's been stopping you from doing this consistently before?

The more I understand your situation, the better I can help you design a challenge that actually works for you.`

// rule maps lifestyle keywords to a canned coaching reply. Rules are checked in order.
type rule struct {
	keywords   []string
	response   string
	suggestion entity.SuggestedChallenge
}

var rules = []rule{
	{
		keywords: []string{"skincare", "skin care"},
		response: `A skincare routine is a perfect challenge! It's exactly the kind of daily habit that compounds over time - both for your skin and for building discipline.

Here's what I'd suggest for you:`,
		suggestion: entity.SuggestedChallenge{
			Title:              "Daily Skincare Ritual",
			Description:        "Complete your morning and evening skincare routine every day. This includes cleansing, moisturizing, and any treatments you use.",
			Type:               entity.ChallengeTypeHabit,
			SuggestedFrequency: entity.FrequencyDaily,
			SuggestedDuration:  14,
			SuggestedDeposit:   50,
			Reasoning:          "Two weeks is enough to start seeing results and building the habit. A $50 deposit is meaningful without being overwhelming - think of it as investing in yourself.",
		},
	},
	{
		keywords: []string{"exercise", "workout", "gym"},
		response: `Exercise is a great choice! But let's make sure we set you up for success. Many people set ambitious goals and then struggle to maintain them.

What if we started with something achievable?`,
		suggestion: entity.SuggestedChallenge{
			Title:              "Daily Movement Practice",
			Description:        "Get at least 20 minutes of intentional physical activity each day. This could be a walk, workout, yoga, or any movement that gets your heart rate up.",
			Type:               entity.ChallengeTypeFitness,
			SuggestedFrequency: entity.FrequencyDaily,
			SuggestedDuration:  7,
			SuggestedDeposit:   25,
			Reasoning:          "Starting with just 7 days and 20 minutes makes this achievable. Once you complete this, you can take on a bigger challenge!",
		},
	},
	{
		keywords: []string{"meditat", "mindful", "calm"},
		response: "Meditation is one of the most impactful habits you can build. Even just 5-10 minutes a day can transform your mental clarity and stress levels.",
		suggestion: entity.SuggestedChallenge{
			Title:              "Daily Mindfulness Practice",
			Description:        "Spend at least 10 minutes each day in meditation or mindfulness practice. Use an app like Headspace, Calm, or simply sit in quiet reflection.",
			Type:               entity.ChallengeTypeWellness,
			SuggestedFrequency: entity.FrequencyDaily,
			SuggestedDuration:  21,
			SuggestedDeposit:   75,
			Reasoning:          "21 days is the classic habit-formation period. The $75 deposit shows you're serious about this investment in your mental wellbeing.",
		},
	},
	{
		keywords: []string{"read", "book", "learn"},
		response: "Reading and learning expand your mind in ways nothing else can. Let's make it a consistent part of your routine.",
		suggestion: entity.SuggestedChallenge{
			Title:              "Daily Reading Habit",
			Description:        "Read for at least 20 minutes every day. This can be books, quality long-form articles, or educational content related to your interests.",
			Type:               entity.ChallengeTypeLearning,
			SuggestedFrequency: entity.FrequencyDaily,
			SuggestedDuration:  14,
			SuggestedDeposit:   50,
			Reasoning:          "Two weeks of daily reading will help you see how much you can accomplish. 20 minutes is achievable even on busy days.",
		},
	},
	{
		keywords: []string{"water", "hydrat"},
		response: "Staying hydrated is such a foundational habit - it affects your energy, skin, focus, and overall health. Let's make it automatic!",
		suggestion: entity.SuggestedChallenge{
			Title:              "Hydration Hero",
			Description:        "Drink at least 8 glasses (64oz) of water every day. Track your intake using a water bottle with measurements or a simple tally.",
			Type:               entity.ChallengeTypeWellness,
			SuggestedFrequency: entity.FrequencyDaily,
			SuggestedDuration:  7,
			SuggestedDeposit:   25,
			Reasoning:          "A week is enough to feel the difference proper hydration makes. The $25 deposit keeps it light while still meaningful.",
		},
	},
	{
		keywords: []string{"sleep", "bed", "rest"},
		response: "Better sleep changes everything - your mood, productivity, health, and relationships all improve. This is a high-impact challenge!",
		suggestion: entity.SuggestedChallenge{
			Title:              "Consistent Sleep Schedule",
			Description:        "Go to bed and wake up at the same time every day (within a 30-minute window). Aim for 7-8 hours of sleep.",
			Type:               entity.ChallengeTypeWellness,
			SuggestedFrequency: entity.FrequencyDaily,
			SuggestedDuration:  14,
			SuggestedDeposit:   75,
			Reasoning:          "Two weeks allows your body to adjust to the new rhythm. The $75 deposit reflects the significant impact this will have on your life.",
		},
	},
}

type keywordGenerator struct{}

// NewKeywordGenerator returns the keyword-matching coach.
func NewKeywordGenerator() service.ResponseGenerator {
	return keywordGenerator{}
}

// NewResponseGenerator selects the configured strategy.
func NewResponseGenerator(cfg *config.Config) (service.ResponseGenerator, error) {
	strategy := constants.DiscoveryStrategyKeyword
	if cfg.Discovery != nil && cfg.Discovery.Strategy != "" {
		strategy = cfg.Discovery.Strategy
	}

	switch strategy {
	case constants.DiscoveryStrategyKeyword:
		return NewKeywordGenerator(), nil
	default:
		return nil, errors.Errorf("unknown discovery strategy: %s", strategy)
	}
}

// Generate matches the lowercased latest message against the rule table.
// Substring matching is intentional: "reading" hits "read", "meditation" hits "meditat".
func (keywordGenerator) Generate(_ context.Context, _ []entity.AIMessage, latest string) (string, *entity.SuggestedChallenge, error) {
	lower := strings.ToLower(latest)

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				suggestion := r.suggestion

				return r.response, &suggestion, nil
			}
		}
	}

	return clarifyingResponse, nil, nil
}

func (keywordGenerator) Model() string {
	return keywordModel
}
