package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/AzielCF/az-amp/campaign/application"
	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/repository"
	coreconfig "github.com/AzielCF/az-amp/core/config"
	coreDB "github.com/AzielCF/az-amp/core/database"
	"github.com/AzielCF/az-amp/infrastructure/duoplus"
	"github.com/AzielCF/az-amp/infrastructure/freeze"
	"github.com/AzielCF/az-amp/infrastructure/valkey"
	"github.com/AzielCF/az-amp/integrations/gemini"
	"github.com/AzielCF/az-amp/integrations/openai"
	"github.com/AzielCF/az-amp/pkg/devicegate"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/AzielCF/az-amp/ui/rest"
	"github.com/AzielCF/az-amp/ui/rest/middleware"
	"github.com/AzielCF/az-amp/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the orchestration engine with its HTTP API",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}

	repo := repository.NewCampaignGormRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		logrus.Fatalf("failed to migrate schema: %v", err)
	}

	var vkClient *valkey.Client
	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("failed to connect to valkey: %v", err)
		}
		defer vkClient.Close()
	}

	duoClient := duoplus.NewClient(cfg.Device.APIKey, cfg.Device.BaseURL)
	executor := duoplus.NewExecutor(duoClient, cfg.Paths.Storages, cfg.Device.ExecuteTimeout)
	gate := devicegate.New(duoClient, devicegate.Config{
		StartRetries:    cfg.Device.StartRetries,
		StartRetryPause: cfg.Device.StartRetryPause,
		PollInterval:    cfg.Device.PollInterval,
		Timeout:         cfg.Device.ReadyTimeout,
	})

	orch := application.NewOrchestrator(cfg, application.Deps{
		Repo:      repo,
		Executor:  executor,
		Freeze:    freeze.NewRuleDetector(),
		Generator: newContentGenerator(cfg),
		Gate:      gate,
		Valkey:    vkClient,
	})

	runCtx, stop := context.WithCancel(context.Background())
	orch.Start(runCtx)

	serverID := utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
	websocket.SetValkeyClient(vkClient, serverID)
	go websocket.RunHub()
	go websocket.ForwardQueueEvents(runCtx, orch.Queues())

	app := fiber.New(fiber.Config{
		Network:               "tcp",
		AppName:               "Az-Amp Orchestration Engine",
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	if len(cfg.App.BasicAuth) > 0 {
		account := make(map[string]string)
		for _, ba := range cfg.App.BasicAuth {
			parts := strings.Split(ba, ":")
			if len(parts) != 2 {
				logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
			}
			account[parts[0]] = parts[1]
		}
		app.Use(basicauth.New(basicauth.Config{Users: account}))
	}

	app.Static("/statics/screenshots", filepath.Join(cfg.Paths.Storages, "screenshots"))

	rest.InitRestHealth(app, db, vkClient)
	rest.InitRestPost(app, repo)
	rest.InitRestPlan(app, repo, orch)
	rest.InitRestInteraction(app, repo, orch)
	rest.InitRestAccount(app, repo)
	rest.InitRestDevice(app, repo, duoClient)
	rest.InitRestQueue(app, orch.Queues())
	websocket.RegisterRoutes(app)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logrus.Fatalf("server stopped: %v", err)
		}
	}()
	logrus.Infof("[REST] listening on :%s", cfg.App.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logrus.Info("[REST] shutting down")
	stop()
	orch.Stop()
	_ = app.Shutdown()
}

// newContentGenerator picks the AI backend from configuration.
func newContentGenerator(cfg *coreconfig.Config) domain.ContentGenerator {
	switch cfg.AI.Provider {
	case "openai":
		return openai.NewGenerator(cfg.APIKeys.OpenAI, cfg.AI.Model, cfg.AI.SystemPrompt)
	default:
		return gemini.NewGenerator(cfg.APIKeys.Gemini, cfg.AI.Model, cfg.AI.SystemPrompt)
	}
}
