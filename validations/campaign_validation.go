package validations

import (
	"context"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	pkgError "github.com/AzielCF/az-amp/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateCreatePost(ctx context.Context, request domain.CreatePostRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.Content, validation.Required, validation.Length(1, 280)),
		validation.Field(&request.ScheduledTime, validation.Required),
		validation.Field(&request.RepeatDays, validation.Min(0)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateReviewPost(ctx context.Context, request domain.ReviewPostRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Decision, validation.Required, validation.In("approve", "reject")),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateScheduleInteraction(ctx context.Context, request domain.ScheduleInteractionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.InteractionType, validation.Required, validation.In(
			string(common.InteractionLike),
			string(common.InteractionComment),
			string(common.InteractionRetweet),
			string(common.InteractionFollow),
		)),
		validation.Field(&request.FromAccountID, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	typ := common.InteractionType(request.InteractionType)
	if typ == common.InteractionFollow && request.TargetUsername == "" {
		return pkgError.ValidationError("target_username is required for follow interactions")
	}
	if typ != common.InteractionFollow && request.TargetURL == "" {
		return pkgError.ValidationError("target_url is required for this interaction type")
	}
	if typ == common.InteractionComment && request.Content == "" {
		return pkgError.ValidationError("content is required for comment interactions")
	}

	return nil
}

func ValidateGeneratePlan(ctx context.Context, request domain.GeneratePlanRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ProjectID, validation.Required),
		validation.Field(&request.PostID, validation.Required),
		validation.Field(&request.PostURL, validation.Required),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateCreateAccount(ctx context.Context, request domain.CreateAccountRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Username, validation.Required),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateUpsertRole(ctx context.Context, request domain.UpsertRoleRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.Role, validation.Required, validation.In(
			string(common.RoleMain),
			string(common.RoleAmplifier),
			string(common.RoleEngagement),
			string(common.RoleSupport),
		)),
		validation.Field(&request.Priority, validation.Min(0)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
