package rest

import (
	"github.com/AzielCF/az-amp/campaign/application"
	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/AzielCF/az-amp/validations"
	"github.com/gofiber/fiber/v2"
)

type Plan struct {
	Repo repository.ICampaignRepository
	Orch *application.Orchestrator
}

func InitRestPlan(app fiber.Router, repo repository.ICampaignRepository, orch *application.Orchestrator) Plan {
	handler := Plan{Repo: repo, Orch: orch}

	group := app.Group("/api/plans")
	group.Post("/generate", handler.Generate)
	group.Post("/:id/execute", handler.Execute)
	group.Get("/:id", handler.Get)

	return handler
}

func (h *Plan) Generate(c *fiber.Ctx) error {
	var request domain.GeneratePlanRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateGeneratePlan(c.UserContext(), request))

	planID, err := h.Orch.Planner().GeneratePlan(c.UserContext(),
		request.ProjectID, request.PostID, request.PostURL, request.PostContent)
	panicTranslated(err)

	if request.Execute {
		panicTranslated(h.Orch.PlanExecutor().ExecutePlan(c.UserContext(), planID))
	}

	plan, err := h.Repo.GetPlan(c.UserContext(), planID)
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Plan generated",
		Results: plan,
	})
}

func (h *Plan) Execute(c *fiber.Ctx) error {
	panicTranslated(h.Orch.PlanExecutor().ExecutePlan(c.UserContext(), c.Params("id")))

	plan, err := h.Repo.GetPlan(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Plan execution started",
		Results: plan,
	})
}

func (h *Plan) Get(c *fiber.Ctx) error {
	plan, err := h.Repo.GetPlan(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Plan retrieved",
		Results: plan,
	})
}
