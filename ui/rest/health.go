package rest

import (
	"time"

	coreconfig "github.com/AzielCF/az-amp/core/config"
	"github.com/AzielCF/az-amp/infrastructure/valkey"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Health struct {
	DB      *gorm.DB
	Valkey  *valkey.Client
	started time.Time
}

func InitRestHealth(app fiber.Router, db *gorm.DB, vk *valkey.Client) Health {
	handler := Health{DB: db, Valkey: vk, started: time.Now()}

	app.Get("/api/health", handler.GetStatus)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	checks := map[string]string{}

	dbStatus := "ok"
	if sqlDB, err := h.DB.DB(); err != nil {
		dbStatus = err.Error()
	} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
		dbStatus = err.Error()
	}
	checks["database"] = dbStatus

	if h.Valkey != nil {
		vkStatus := "ok"
		if err := h.Valkey.Ping(c.UserContext()); err != nil {
			vkStatus = err.Error()
		}
		checks["valkey"] = vkStatus
	} else {
		checks["valkey"] = "disabled"
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: map[string]any{
			"version": coreconfig.Global.App.Version,
			"uptime":  humanize.Time(h.started),
			"checks":  checks,
		},
	})
}
