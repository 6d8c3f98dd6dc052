package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskline/taskline/internal/types"
)

// DuplicateCheckResponse represents the model's analysis of whether a
// candidate task restates an already-recorded task
type DuplicateCheckResponse struct {
	IsDuplicate bool   `json:"is_duplicate"` // Is the candidate a duplicate?
	DuplicateID string `json:"duplicate_id"` // ID of the matched task, best-effort
	Reasoning   string `json:"reasoning"`    // Explanation of the determination
}

// CheckTaskDuplicate asks the model whether a candidate task is a
// restatement of any task in the supplied window. The caller is responsible
// for short-circuiting an empty window; calling this with zero tasks is a
// programming error.
//
// The boolean in the response is authoritative; the id is best-effort. A
// verdict naming an id outside the window keeps is_duplicate and clears the
// id rather than discarding the verdict.
func (c *Client) CheckTaskDuplicate(ctx context.Context, candidate types.CandidateTask, window []*types.Task, now time.Time) (*types.Verdict, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("duplicate check requires a non-empty task window")
	}

	prompt := buildDuplicateCheckPrompt(candidate, window, now)

	responseText, err := c.CallAI(ctx, prompt, "duplicate_check", 1024)
	if err != nil {
		return nil, fmt.Errorf("duplicate check call failed: %w", err)
	}

	parseResult := Parse[DuplicateCheckResponse](responseText, ParseOptions{
		Context: "duplicate check response",
	})
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse duplicate check response: %s (response: %s)",
			parseResult.Error, truncateString(responseText, 200))
	}
	response := parseResult.Data

	matched := response.DuplicateID
	if response.IsDuplicate && matched != "" {
		found := false
		for _, task := range window {
			if task.ID == matched {
				found = true
				break
			}
		}
		if !found {
			log.Printf("[DEDUP] verdict references unknown task id %q, keeping is_duplicate with no match", matched)
			matched = ""
		}
	}
	if !response.IsDuplicate {
		matched = ""
	}

	return &types.Verdict{
		IsDuplicate:   response.IsDuplicate,
		MatchedTaskID: matched,
		Reasoning:     response.Reasoning,
	}, nil
}

// buildDuplicateCheckPrompt builds the duplicate-detection prompt. The
// decision policy section is the semantic contract the classifier is
// expected to honor; keep it in sync with the tests that exercise it.
func buildDuplicateCheckPrompt(candidate types.CandidateTask, window []*types.Task, now time.Time) string {
	prompt := fmt.Sprintf(`You are analyzing whether a new candidate task duplicates a recently recorded task.

CANDIDATE TASK:
Action: %s
Priority: %s
Sender: %s

RECENT TASKS TO COMPARE AGAINST:
`, candidate.Action, candidate.Priority, candidate.Sender)

	for i, task := range window {
		prompt += fmt.Sprintf(`
[%d] ID: %s
    Action: %s
    Priority: %s
    Sender: %s
    Recorded: %s
`, i+1, task.ID, task.Action, task.Priority, task.Sender, relativeAge(task.CreatedAt, now))
	}

	prompt += `
TASK:
Determine if the CANDIDATE is a semantic duplicate of any recent task above.

DECISION POLICY:
1. Same underlying problem or goal means DUPLICATE, even if the wording differs
2. Same error type in the SAME environment means DUPLICATE
3. Same error type in a DIFFERENT environment is NOT a duplicate
4. A different component/feature, a different deadline, or a different
   meeting/event is NOT a duplicate even if topically similar
5. If an existing unresolved task is older than 24 hours and the candidate is
   a new urgent report of the same issue, it may be an escalation rather than
   a duplicate. Use judgment here; there is no hard rule.

OUTPUT FORMAT (JSON only, no markdown):
{
  "is_duplicate": boolean,
  "duplicate_id": "task id of the match, or null",
  "reasoning": "Brief explanation of why this is/isn't a duplicate"
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`

	return prompt
}
