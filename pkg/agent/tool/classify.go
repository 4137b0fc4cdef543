package tool

import (
	"context"
	"errors"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	fsrepo "github.com/engram-dev/engram/pkg/repository/firestore"
	memrepo "github.com/engram-dev/engram/pkg/repository/memory"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidArgument marks caller-fixable input failures raised during
// dispatch, such as a missing required field.
var ErrInvalidArgument = goerr.New("invalid argument")

// Classify maps an internal failure to its error category. It is a
// pure function over the error chain: the dispatcher is the only
// caller, keeping classification in one place.
//
// A malformed tenant ID in the argument bundle is VALIDATION, not
// TENANT: the caller can fix the field. TENANT is reserved for
// identity mismatches — a tenant unknown to the registry, or an
// attempt to move a record across tenants.
func Classify(err error) types.ErrorCategory {
	if err == nil {
		return types.ErrorCategoryInternal
	}

	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, types.ErrInvalidTenantID),
		errors.Is(err, usecase.ErrEndpointNotFound),
		errors.Is(err, usecase.ErrSelfRelation):
		return types.ErrorCategoryValidation

	case errors.Is(err, model.ErrTenantNotFound),
		errors.Is(err, memrepo.ErrTenantMismatch),
		errors.Is(err, fsrepo.ErrTenantMismatch):
		return types.ErrorCategoryTenant

	case errors.Is(err, usecase.ErrTenantDenied):
		return types.ErrorCategoryAuthorization

	case errors.Is(err, usecase.ErrMemoryNotFound),
		errors.Is(err, usecase.ErrRelationshipNotFound),
		errors.Is(err, memrepo.ErrNotFound),
		errors.Is(err, fsrepo.ErrNotFound):
		return types.ErrorCategoryNotFound

	// Caller-initiated cancellation is not a deadline expiry and must
	// not be reported retryable as TIMEOUT would.
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrorCategoryTimeout
	}

	// Transport-level failures that escaped the repository wrappers.
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return types.ErrorCategoryTimeout
	case codes.NotFound:
		return types.ErrorCategoryNotFound
	case codes.PermissionDenied:
		return types.ErrorCategoryAuthorization
	}

	return types.ErrorCategoryInternal
}
