package config

import (
	"os"
	"strconv"
	"strings"
)

// GetAllSettings returns a map of the dynamic settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_debug":                   Global.App.Debug,
		"app_version":                 Global.App.Version,
		"queue_publish_workers":       Global.Queue.PublishWorkers,
		"queue_interact_workers":      Global.Queue.InteractWorkers,
		"queue_max_attempts":          Global.Queue.MaxAttempts,
		"enqueuer_interval":           Global.Enqueuer.Interval.String(),
		"enqueuer_batch_size":         Global.Enqueuer.BatchSize,
		"planner_conversation":        Global.Planner.ConversationEnabled,
		"ai_provider":                 Global.AI.Provider,
		"device_ready_timeout":        Global.Device.ReadyTimeout.String(),
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}
