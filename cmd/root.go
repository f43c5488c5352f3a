package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/az-amp/core/config"
	"github.com/AzielCF/az-amp/pkg/utils"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-amp",
	Short: "Cross-account social media orchestration engine",
	Long: `az-amp schedules posts, amplifies them across an account pool and
drives the virtual devices that perform each action.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initEnvConfig, initLogging)
}

// initEnvConfig merges viper-visible settings into the environment so
// LoadConfig sees flags from .env and the real environment alike.
func initEnvConfig() {
	for _, key := range []string{
		"app_port", "app_debug", "app_basic_auth",
		"db_driver", "db_name",
		"duoplus_api_key", "ai_provider",
	} {
		if v := viper.GetString(key); v != "" {
			_ = os.Setenv(strings.ToUpper(key), v)
		}
	}

	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.App.Debug {
		fmt.Println(coreconfig.GetAllSettings())
	}
}

func initLogging() {
	if coreconfig.Global != nil && coreconfig.Global.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatalln("command execution failed")
	}
}
