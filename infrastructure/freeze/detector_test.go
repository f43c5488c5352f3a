package freeze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectClassifiesByMarker(t *testing.T) {
	cases := []struct {
		name       string
		message    string
		freezeType string
		action     string
	}{
		{"suspension", "Your account has been suspended for violating the rules", "suspension", "halt_account"},
		{"lock", "Account locked: verify your identity to continue", "lock", "manual_verification"},
		{"captcha", "Please solve this CAPTCHA to prove you are human", "challenge", "cooldown"},
		{"rate limit", "Rate limit exceeded, try again in 15 minutes", "rate_limit", "cooldown"},
		{"restriction", "Some features of your account are limited", "restriction", "cooldown"},
	}

	d := NewRuleDetector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := d.Detect(context.Background(), "acc-1", "dev-1", tc.message)
			require.NoError(t, err)
			require.True(t, verdict.IsFrozen)
			require.Equal(t, tc.freezeType, verdict.FreezeType)
			require.Equal(t, tc.action, verdict.RecommendedAction)
			require.NotEmpty(t, verdict.FreezeID)
		})
	}
}

func TestDetectSeverityOrder(t *testing.T) {
	// A message matching several rules takes the most severe one.
	d := NewRuleDetector()
	verdict, err := d.Detect(context.Background(), "acc-1", "dev-1",
		"account suspended after rate limit violations")
	require.NoError(t, err)
	require.Equal(t, "suspension", verdict.FreezeType)
}

func TestDetectOrdinaryFailureIsNotFrozen(t *testing.T) {
	d := NewRuleDetector()
	verdict, err := d.Detect(context.Background(), "acc-1", "dev-1", "screenshot decode failed")
	require.NoError(t, err)
	require.False(t, verdict.IsFrozen)
	require.Empty(t, verdict.FreezeID)
}

func TestRespondCooldown(t *testing.T) {
	d := NewRuleDetector()
	verdict, err := d.Detect(context.Background(), "acc-1", "dev-1", "too many requests")
	require.NoError(t, err)

	resp, err := d.Respond(context.Background(), verdict.FreezeID, "acc-1", "dev-1", verdict.RecommendedAction)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "cooldown acknowledged", resp.Message)
}

func TestRespondEscalation(t *testing.T) {
	d := NewRuleDetector()
	verdict, err := d.Detect(context.Background(), "acc-1", "dev-1", "account suspended")
	require.NoError(t, err)

	resp, err := d.Respond(context.Background(), verdict.FreezeID, "acc-1", "dev-1", verdict.RecommendedAction)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "escalated to operator", resp.Message)
}

func TestRespondUnknownFreeze(t *testing.T) {
	d := NewRuleDetector()
	resp, err := d.Respond(context.Background(), "nope", "acc-1", "dev-1", "cooldown")
	require.NoError(t, err)
	require.False(t, resp.Success)
}

func TestRespondUnsupportedAction(t *testing.T) {
	d := NewRuleDetector()
	verdict, err := d.Detect(context.Background(), "acc-1", "dev-1", "rate limit")
	require.NoError(t, err)

	resp, err := d.Respond(context.Background(), verdict.FreezeID, "acc-1", "dev-1", "reboot_planet")
	require.NoError(t, err)
	require.False(t, resp.Success)
}
