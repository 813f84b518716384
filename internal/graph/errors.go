package graph

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gitlab.com/ellera/guildhall/internal/models"
)

// Identity is what the token verifier proved about the caller.
type Identity struct {
	Subject  string
	Email    string
	Name     string
	ImageURL string
}

type identityCtxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*Identity)
	return id, ok
}

// apiError carries the stable code surfaced in GraphQL error
// extensions. graphql-go picks Extensions() up automatically.
type apiError struct {
	code    string
	message string
}

func (e *apiError) Error() string {
	return e.message
}
func (e *apiError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

var (
	errUnauthenticated = &apiError{code: "UNAUTHENTICATED", message: "Not authorized"}
	errImageRequired   = &apiError{code: "IMAGE_REQUIRED", message: "Image is required"}
)

// apiErrorFor translates domain errors into tagged API errors. Unknown
// errors surface as a generic internal error; the cause stays in the
// server log only.
func apiErrorFor(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrProfileNotFound):
		return &apiError{code: "PROFILE_NOT_FOUND", message: "Profile not found"}
	case errors.Is(err, models.ErrServerNotFound):
		return &apiError{code: "SERVER_NOT_FOUND", message: "Server not found"}
	case errors.Is(err, models.ErrChannelNotFound):
		return &apiError{code: "CHANNEL_NOT_FOUND", message: "Channel not found"}
	case errors.Is(err, models.ErrMemberNotFound):
		return &apiError{code: "MEMBER_NOT_FOUND", message: "Member not found"}
	case errors.Is(err, models.ErrPermDenied):
		return &apiError{code: "FORBIDDEN", message: "Not enough permissions to execute this action"}
	case errors.Is(err, models.ErrAlreadyMember):
		return &apiError{code: "ALREADY_MEMBER", message: "Member already exists"}
	case errors.Is(err, models.ErrEmailAlreadyUsed):
		return &apiError{code: "EMAIL_ALREADY_USED", message: "Email already used"}
	case errors.Is(err, models.ErrInvalidFormat):
		return &apiError{code: "INVALID_INPUT", message: "Invalid input"}
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("unexpected store failure")
		return &apiError{code: "INTERNAL", message: "Internal server error"}
	}
}
