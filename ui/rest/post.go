package rest

import (
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	pkgError "github.com/AzielCF/az-amp/pkg/error"
	"github.com/AzielCF/az-amp/pkg/utils"
	"github.com/AzielCF/az-amp/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Post struct {
	Repo repository.ICampaignRepository
}

func InitRestPost(app fiber.Router, repo repository.ICampaignRepository) Post {
	handler := Post{Repo: repo}

	group := app.Group("/api/posts")
	group.Post("/", handler.Create)
	group.Get("/:id", handler.Get)
	group.Post("/:id/review", handler.Review)

	return handler
}

func (h *Post) Create(c *fiber.Ctx) error {
	var request domain.CreatePostRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateCreatePost(c.UserContext(), request))

	now := time.Now().UTC()
	review := common.ReviewStatusPendingReview
	if request.AutoApprove {
		review = common.ReviewStatusApproved
	}
	post := common.ScheduledPost{
		ID:             uuid.NewString(),
		ProjectID:      request.ProjectID,
		AccountID:      request.AccountID,
		Content:        request.Content,
		ScheduledTime:  request.ScheduledTime.UTC(),
		Status:         common.ScheduledPostStatusPending,
		ReviewStatus:   review,
		RepeatInterval: request.RepeatDays * 24 * 60,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	panicTranslated(h.Repo.CreateScheduledPost(c.UserContext(), post))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post scheduled",
		Results: post,
	})
}

func (h *Post) Get(c *fiber.Ctx) error {
	post, err := h.Repo.GetScheduledPost(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post retrieved",
		Results: post,
	})
}

func (h *Post) Review(c *fiber.Ctx) error {
	var request domain.ReviewPostRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateReviewPost(c.UserContext(), request))

	post, err := h.Repo.GetScheduledPost(c.UserContext(), c.Params("id"))
	panicTranslated(err)

	if post.Status != common.ScheduledPostStatusPending {
		panic(pkgError.ConflictError("post is no longer reviewable"))
	}

	if request.Decision == "approve" {
		post.ReviewStatus = common.ReviewStatusApproved
	} else {
		post.ReviewStatus = common.ReviewStatusRejected
	}
	post.UpdatedAt = time.Now().UTC()
	panicTranslated(h.Repo.UpdateScheduledPost(c.UserContext(), post))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Review recorded",
		Results: post,
	})
}
