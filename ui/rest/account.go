package rest

import (
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/AzielCF/az-amp/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Account struct {
	Repo repository.ICampaignRepository
}

func InitRestAccount(app fiber.Router, repo repository.ICampaignRepository) Account {
	handler := Account{Repo: repo}

	group := app.Group("/api/accounts")
	group.Post("/", handler.Create)
	group.Get("/:id", handler.Get)

	app.Put("/api/projects/:projectID/roles", handler.UpsertRole)
	app.Get("/api/projects/:projectID/roles", handler.ListRoles)

	return handler
}

func (h *Account) Create(c *fiber.Ctx) error {
	var request domain.CreateAccountRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateCreateAccount(c.UserContext(), request))

	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	acc := common.Account{
		ID:       request.ID,
		Username: request.Username,
		DeviceID: request.DeviceID,
		Persona:  request.Persona,
		Active:   true,
	}
	panicTranslated(h.Repo.CreateAccount(c.UserContext(), acc))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account created",
		Results: acc,
	})
}

func (h *Account) Get(c *fiber.Ctx) error {
	acc, err := h.Repo.GetAccount(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account retrieved",
		Results: acc,
	})
}

func (h *Account) UpsertRole(c *fiber.Ctx) error {
	var request domain.UpsertRoleRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateUpsertRole(c.UserContext(), request))

	active := true
	if request.Active != nil {
		active = *request.Active
	}
	role := common.AccountRole{
		ProjectID: c.Params("projectID"),
		AccountID: request.AccountID,
		Role:      common.AccountRoleName(request.Role),
		Priority:  request.Priority,
		Active:    active,
		UpdatedAt: time.Now().UTC(),
	}
	panicTranslated(h.Repo.UpsertAccountRole(c.UserContext(), role))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Role assigned",
		Results: role,
	})
}

func (h *Account) ListRoles(c *fiber.Ctx) error {
	roles, err := h.Repo.ListActiveRoles(c.UserContext(), c.Params("projectID"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Roles retrieved",
		Results: roles,
	})
}
