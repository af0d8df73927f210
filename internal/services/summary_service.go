package services

import (
	"context"
	"strings"

	"github.com/voiceflow/voiceflow/internal/providers/llm"
	"github.com/voiceflow/voiceflow/internal/utils"
)

// Prompt types supported by the summarizer.
const (
	SummaryTypeMeeting   = "summary"
	SummaryTypeInterview = "hr_interview"
)

const meetingPrompt = `Below is a transcript of a meeting. Please provide:
1. A brief summary (2-3 paragraphs)
2. Key topics discussed (bullet points)
3. Main decisions and action items
4. Important follow-ups

Transcript:
%TRANSCRIPT%

Response:`

const interviewPrompt = `Below is a transcript of an HR interview. Please provide:
1. Key insights about the candidate's skills and experience
2. Behavioral traits observed during the interview
3. Recommendations for the next steps in the hiring process

Transcript:
%TRANSCRIPT%

Response:`

type SummaryService interface {
	Summarize(ctx context.Context, transcript, summaryType string) (string, error)
}

type summaryService struct {
	model llm.Provider
}

func NewSummaryService(model llm.Provider) SummaryService {
	return &summaryService{model: model}
}

func (s *summaryService) Summarize(ctx context.Context, transcript, summaryType string) (string, error) {
	const op = "SummaryService.Summarize"

	if strings.TrimSpace(transcript) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "transcript is empty", nil)
	}

	var template string
	switch summaryType {
	case "", SummaryTypeMeeting:
		template = meetingPrompt
	case SummaryTypeInterview:
		template = interviewPrompt
	default:
		return "", utils.E(utils.CodeInvalidArgument, op, "unknown summary type: "+summaryType, nil)
	}

	prompt := strings.Replace(template, "%TRANSCRIPT%", transcript, 1)
	out, err := s.model.Complete(ctx, prompt)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "summary generation failed", err)
	}
	return out, nil
}
