package utils

import (
	"os"
	"path/filepath"

	coreconfig "github.com/AzielCF/az-amp/core/config"
)

// GetScreenshotStoragePath returns the directory for device screenshots,
// creating it when missing.
func GetScreenshotStoragePath() string {
	path := filepath.Join(coreconfig.Global.Paths.Storages, "screenshots")
	_ = os.MkdirAll(path, 0755)
	return path
}

// GetStoragePath returns a subdirectory of the storage root, creating it
// when missing.
func GetStoragePath(subfolder string) string {
	path := filepath.Join(coreconfig.Global.Paths.Storages, subfolder)
	_ = os.MkdirAll(path, 0755)
	return path
}
