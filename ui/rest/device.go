package rest

import (
	"time"

	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/infrastructure/duoplus"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Device struct {
	Repo   repository.ICampaignRepository
	Client *duoplus.Client
}

func InitRestDevice(app fiber.Router, repo repository.ICampaignRepository, client *duoplus.Client) Device {
	handler := Device{Repo: repo, Client: client}

	group := app.Group("/api/devices")
	group.Get("/", handler.List)
	group.Get("/:id", handler.Get)
	group.Post("/:id/sync", handler.Sync)

	return handler
}

// List returns the live device inventory straight from the backend.
func (h *Device) List(c *fiber.Ctx) error {
	devices, err := h.Client.ListDevices(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Devices retrieved",
		Results: devices,
	})
}

func (h *Device) Get(c *fiber.Ctx) error {
	dev, err := h.Repo.GetDevice(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Device retrieved",
		Results: dev,
	})
}

// Sync refreshes the stored status of one device from the backend.
func (h *Device) Sync(c *fiber.Ctx) error {
	id := c.Params("id")
	status, err := h.Client.Status(c.UserContext(), id)
	utils.PanicIfNeeded(err)

	now := time.Now().UTC()
	panicTranslated(h.Repo.UpdateDeviceStatus(c.UserContext(), id, status, now))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Device status synced",
		Results: map[string]any{"id": id, "status_code": status, "checked_at": now},
	})
}
