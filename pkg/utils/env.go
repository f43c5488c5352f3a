package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads a .env file from the given directory (when present)
// and wires viper to read environment variables.
func LoadConfig(path string) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	viper.AutomaticEnv()
	viper.SetConfigFile(filepath.Join(path, ".env"))
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()
}
