package common

import "errors"

var (
	ErrPostNotFound        = errors.New("scheduled post not found")
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrPlanNotFound        = errors.New("orchestration plan not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrNoDeviceAssigned    = errors.New("account has no device assigned")
	ErrMissingTarget       = errors.New("interaction target is not resolvable")
	ErrInvalidTransition   = errors.New("invalid plan status transition")
	ErrPlanNotPlanned      = errors.New("plan is not in planned status")
)
