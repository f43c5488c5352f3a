package rest

import (
	"github.com/AzielCF/az-amp/campaign/application"
	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/AzielCF/az-amp/validations"
	"github.com/gofiber/fiber/v2"
)

type Interaction struct {
	Repo repository.ICampaignRepository
	Orch *application.Orchestrator
}

func InitRestInteraction(app fiber.Router, repo repository.ICampaignRepository, orch *application.Orchestrator) Interaction {
	handler := Interaction{Repo: repo, Orch: orch}

	group := app.Group("/api/interactions")
	group.Post("/", handler.Schedule)
	group.Get("/:id", handler.Get)

	return handler
}

func (h *Interaction) Schedule(c *fiber.Ctx) error {
	var request domain.ScheduleInteractionRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateScheduleInteraction(c.UserContext(), request))

	in, err := h.Orch.ScheduleInteraction(c.UserContext(),
		common.InteractionType(request.InteractionType),
		request.FromAccountID, request.TargetURL, request.TargetUsername, request.Content)
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Interaction scheduled",
		Results: in,
	})
}

func (h *Interaction) Get(c *fiber.Ctx) error {
	in, err := h.Repo.GetInteraction(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Interaction retrieved",
		Results: in,
	})
}
