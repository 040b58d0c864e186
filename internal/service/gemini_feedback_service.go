package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/htvu/Athene/config"
	"github.com/htvu/Athene/internal/model"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// FeedbackService produces a short explanation for an incorrect
// identification answer. Purely advisory; never affects the grade.
type FeedbackService interface {
	Enabled() bool
	FeedbackForAnswer(question *model.Question, given string) (string, error)
}

type geminiFeedbackService struct {
	client *genai.GenerativeModel
}

func NewGeminiFeedbackService(cfg *config.Config) (FeedbackService, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. Answer feedback will be disabled.")
		return &geminiFeedbackService{}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &geminiFeedbackService{client: client.GenerativeModel("gemini-1.5-flash")}, nil
}

func (s *geminiFeedbackService) Enabled() bool {
	return s.client != nil
}

func (s *geminiFeedbackService) FeedbackForAnswer(question *model.Question, given string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	var prompt strings.Builder
	prompt.WriteString("You are a teacher reviewing a graded quiz.\n")
	prompt.WriteString("A student answered an identification question incorrectly.\n\n")
	prompt.WriteString("Question:\n")
	prompt.WriteString(question.Text)
	prompt.WriteString("\n\nExpected answer: ")
	prompt.WriteString(question.CorrectAnswer)
	prompt.WriteString("\nStudent's answer: ")
	prompt.WriteString(given)
	prompt.WriteString("\n\nIn two or three sentences, explain why the student's answer is wrong ")
	prompt.WriteString("and what distinguishes the expected answer. Do not restate the question. ")
	prompt.WriteString("Reply with the explanation only, no preamble.")

	ctx := context.Background()
	resp, err := s.client.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		log.Error().Err(err).Uint("questionID", question.ID).Msg("Gemini API error during feedback generation")
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return strings.TrimSpace(out.String()), nil
}
