package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/sirupsen/logrus"
)

// ThreadTurn is one validated message of a generated conversation.
// DelayMinutes is a cumulative offset from the trigger post.
type ThreadTurn struct {
	AccountID    string `json:"account_id"`
	Content      string `json:"content"`
	DelayMinutes int    `json:"delay_minutes"`
}

const (
	threadMinTurns   = 3
	threadMaxTurns   = 5
	threadMaxTurnLen = 140
	threadMinGap     = 1
	threadMaxGap     = 5
)

// GenerateThread asks the content collaborator for a short multi-turn
// exchange between the participants about the given post. Turns naming an
// account outside the participant set are discarded, and delays are
// normalized to a strictly increasing cumulative offset even when the
// collaborator returns them out of order or missing.
func (pl *Planner) GenerateThread(ctx context.Context, participants []common.Account, postContent string) ([]ThreadTurn, error) {
	if pl.gen == nil {
		return nil, fmt.Errorf("no content generator configured")
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("a thread needs at least 2 participants, got %d", len(participants))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a natural %d-%d message reply thread reacting to this post. ", threadMinTurns, threadMaxTurns)
	fmt.Fprintf(&sb, "Each message is at most %d characters. Participants:\n", threadMaxTurnLen)
	for _, acc := range participants {
		fmt.Fprintf(&sb, "- account_id %q (@%s): %s\n", acc.ID, acc.Username, acc.Persona)
	}
	sb.WriteString(`Respond with a JSON array only: [{"account_id":"...","content":"...","delay_minutes":N}, ...]`)

	res, err := pl.gen.Generate(ctx, domain.GenerateRequest{
		Context:     postContent,
		Constraints: sb.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate thread: %w", err)
	}

	raw := extractJSONArray(res.Content)
	var turns []ThreadTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("parse thread response: %w", err)
	}

	allowed := make(map[string]bool, len(participants))
	for _, acc := range participants {
		allowed[acc.ID] = true
	}

	var valid []ThreadTurn
	for _, turn := range turns {
		if !allowed[turn.AccountID] {
			logrus.Warnf("[PLANNER] thread turn references unknown account %q, discarding", turn.AccountID)
			continue
		}
		if utf8.RuneCountInString(turn.Content) > threadMaxTurnLen {
			turn.Content = string([]rune(turn.Content)[:threadMaxTurnLen])
		}
		valid = append(valid, turn)
	}
	if len(valid) > threadMaxTurns {
		valid = valid[:threadMaxTurns]
	}

	// Normalize delays into a strictly increasing cumulative offset;
	// missing or non-monotonic values get a random 1-5 minute gap.
	prev := 0
	for i := range valid {
		if valid[i].DelayMinutes <= prev {
			valid[i].DelayMinutes = prev + pl.sample(DelayRange{threadMinGap, threadMaxGap})
		}
		prev = valid[i].DelayMinutes
	}
	return valid, nil
}

// extractJSONArray strips markdown fences and surrounding prose from an
// LLM response, keeping the outermost JSON array.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
