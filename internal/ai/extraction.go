package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskline/taskline/internal/types"
)

// extractedItem is the raw shape the model returns for one action item.
// Everything beyond action/priority is optional metadata passed through.
type extractedItem struct {
	Action         string  `json:"action"`
	Priority       string  `json:"priority"`
	Sender         string  `json:"sender,omitempty"`
	Environment    string  `json:"environment,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// Extract asks the model to pull actionable tasks out of a rendered
// conversation. Returns zero candidates without error when the conversation
// contains nothing actionable.
func (c *Client) Extract(ctx context.Context, conversationText, source string) ([]types.CandidateTask, error) {
	prompt := buildExtractionPrompt(conversationText, source)

	responseText, err := c.CallAI(ctx, prompt, "extraction", 2048)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	parseResult := Parse[[]extractedItem](responseText, ParseOptions{
		Context: "extraction response",
	})
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse extraction response: %s (response: %s)",
			parseResult.Error, truncateString(responseText, 200))
	}

	var candidates []types.CandidateTask
	for _, item := range parseResult.Data {
		if strings.TrimSpace(item.Action) == "" {
			continue
		}
		candidates = append(candidates, types.CandidateTask{
			Action:         strings.TrimSpace(item.Action),
			Priority:       types.NormalizePriority(item.Priority),
			Sender:         item.Sender,
			Environment:    strings.ToLower(strings.TrimSpace(item.Environment)),
			Reasoning:      item.Reasoning,
			Confidence:     item.Confidence,
			RelevanceScore: item.RelevanceScore,
		})
	}
	return candidates, nil
}

// buildExtractionPrompt builds the prompt for action extraction
func buildExtractionPrompt(conversationText, source string) string {
	return fmt.Sprintf(`You are extracting actionable tasks from a buffered conversation.

SOURCE: %s

CONVERSATION:
%s

TASK:
Identify every concrete action item in the conversation: things someone is
being asked to do, commitments people made, and problems that need fixing.

IMPORTANT GUIDELINES:
1. Extract the UNDERLYING action, not the literal sentence
2. One entry per distinct action; do not split a single request into parts
3. Skip pleasantries, acknowledgements, and FYI-only statements
4. priority is one of: urgent, high, medium, low
5. If an environment is mentioned (production, staging, uat, dev), record it
   lowercased in "environment"; otherwise omit the field
6. "sender" is the person the action originated from, if identifiable

OUTPUT FORMAT (JSON only, no markdown):
[
  {
    "action": "Short imperative description of the task",
    "priority": "high",
    "sender": "alice",
    "environment": "production",
    "reasoning": "Brief explanation of why this is actionable",
    "confidence": 0.9,
    "relevance_score": 0.8
  }
]

Return an empty array [] if the conversation contains no actionable tasks.

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`,
		source, conversationText)
}
