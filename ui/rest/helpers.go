package rest

import (
	"errors"

	"github.com/AzielCF/az-amp/campaign/domain/common"
	pkgError "github.com/AzielCF/az-amp/pkg/error"
	"github.com/AzielCF/az-amp/pkg/utils"
)

// panicTranslated maps domain sentinel errors onto HTTP-aware errors and
// hands them to the recovery middleware.
func panicTranslated(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, common.ErrPostNotFound),
		errors.Is(err, common.ErrInteractionNotFound),
		errors.Is(err, common.ErrPlanNotFound),
		errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrDeviceNotFound):
		panic(pkgError.NotFoundError(err.Error()))
	case errors.Is(err, common.ErrInvalidTransition),
		errors.Is(err, common.ErrPlanNotPlanned):
		panic(pkgError.ConflictError(err.Error()))
	case errors.Is(err, common.ErrNoDeviceAssigned),
		errors.Is(err, common.ErrMissingTarget):
		panic(pkgError.ValidationError(err.Error()))
	default:
		utils.PanicIfNeeded(err)
	}
}
