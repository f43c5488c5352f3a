package freeze

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// rule maps an error-message marker to a freeze classification.
type rule struct {
	markers []string
	kind    string
	action  string
}

// Ordered by severity: the first matching rule wins.
var rules = []rule{
	{[]string{"suspended", "permanently banned"}, "suspension", "halt_account"},
	{[]string{"account locked", "unlock your account", "verify your identity"}, "lock", "manual_verification"},
	{[]string{"captcha", "unusual activity", "are you a robot"}, "challenge", "cooldown"},
	{[]string{"rate limit", "too many requests", "try again later"}, "rate_limit", "cooldown"},
	{[]string{"frozen", "restricted", "limited"}, "restriction", "cooldown"},
}

type record struct {
	AccountID string
	DeviceID  string
	Kind      string
	Action    string
	Message   string
	Detected  time.Time
	Responded bool
}

// RuleDetector is the default freeze detector: it classifies failure
// messages against a fixed marker table and remembers verdicts so a
// later Respond call can be correlated. Remediation here is advisory;
// cooldown verdicts simply pause nothing and leave the retry budget to
// the queue.
type RuleDetector struct {
	mu      sync.Mutex
	records map[string]*record
}

func NewRuleDetector() *RuleDetector {
	return &RuleDetector{records: make(map[string]*record)}
}

func (d *RuleDetector) Detect(ctx context.Context, accountID, deviceID, errorMessage string) (domain.FreezeVerdict, error) {
	msg := strings.ToLower(errorMessage)
	for _, r := range rules {
		for _, marker := range r.markers {
			if !strings.Contains(msg, marker) {
				continue
			}
			id := uuid.NewString()
			d.mu.Lock()
			d.records[id] = &record{
				AccountID: accountID,
				DeviceID:  deviceID,
				Kind:      r.kind,
				Action:    r.action,
				Message:   errorMessage,
				Detected:  time.Now().UTC(),
			}
			d.mu.Unlock()
			logrus.Warnf("[FREEZE] account %s flagged as %s (action: %s)", accountID, r.kind, r.action)
			return domain.FreezeVerdict{
				FreezeID:          id,
				IsFrozen:          true,
				FreezeType:        r.kind,
				RecommendedAction: r.action,
			}, nil
		}
	}
	return domain.FreezeVerdict{IsFrozen: false}, nil
}

func (d *RuleDetector) Respond(ctx context.Context, freezeID, accountID, deviceID, action string) (domain.FreezeResponse, error) {
	d.mu.Lock()
	rec, ok := d.records[freezeID]
	if ok {
		rec.Responded = true
	}
	d.mu.Unlock()

	if !ok {
		return domain.FreezeResponse{Success: false, Message: "unknown freeze id"}, nil
	}

	switch action {
	case "cooldown":
		// Nothing to do on the device; the queue's backoff is the cooldown.
		return domain.FreezeResponse{Success: true, Message: "cooldown acknowledged"}, nil
	case "halt_account", "manual_verification":
		logrus.Errorf("[FREEZE] account %s requires operator intervention (%s)", accountID, rec.Kind)
		return domain.FreezeResponse{Success: true, Message: "escalated to operator"}, nil
	default:
		return domain.FreezeResponse{Success: false, Message: "unsupported action " + action}, nil
	}
}
