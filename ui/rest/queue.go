package rest

import (
	"github.com/AzielCF/az-amp/pkg/jobqueue"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

type QueueOps struct {
	Manager *jobqueue.Manager
}

func InitRestQueue(app fiber.Router, manager *jobqueue.Manager) QueueOps {
	handler := QueueOps{Manager: manager}

	group := app.Group("/api/queues")
	group.Get("/", handler.List)
	group.Get("/:name/jobs/:key", handler.GetJob)
	group.Post("/:name/pause", handler.Pause)
	group.Post("/:name/resume", handler.Resume)
	group.Post("/:name/replay-failed", handler.ReplayFailed)

	return handler
}

type queueStatsView struct {
	jobqueue.Stats
	ProcessedHuman string `json:"processed_human"`
}

func (h *QueueOps) List(c *fiber.Ctx) error {
	queues := h.Manager.Queues()
	stats := make([]queueStatsView, 0, len(queues))
	for _, q := range queues {
		s := q.Stats()
		stats = append(stats, queueStatsView{
			Stats:          s,
			ProcessedHuman: humanize.Comma(s.Processed),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Queue stats retrieved",
		Results: stats,
	})
}

func (h *QueueOps) GetJob(c *fiber.Ctx) error {
	q, ok := h.Manager.Queue(c.Params("name"))
	if !ok {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND_ERROR",
			Message: "Unknown queue",
		})
	}

	job, ok := q.Job(c.Params("key"))
	if !ok {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND_ERROR",
			Message: "Unknown job",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Job retrieved",
		Results: job,
	})
}

func (h *QueueOps) Pause(c *fiber.Ctx) error {
	q, ok := h.Manager.Queue(c.Params("name"))
	if !ok {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND_ERROR",
			Message: "Unknown queue",
		})
	}
	q.Pause()

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Queue paused",
		Results: q.Stats(),
	})
}

func (h *QueueOps) Resume(c *fiber.Ctx) error {
	q, ok := h.Manager.Queue(c.Params("name"))
	if !ok {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND_ERROR",
			Message: "Unknown queue",
		})
	}
	q.Resume()

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Queue resumed",
		Results: q.Stats(),
	})
}

func (h *QueueOps) ReplayFailed(c *fiber.Ctx) error {
	q, ok := h.Manager.Queue(c.Params("name"))
	if !ok {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND_ERROR",
			Message: "Unknown queue",
		})
	}
	replayed := q.ReplayFailed()

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Failed jobs replayed",
		Results: map[string]any{"replayed": replayed},
	})
}
