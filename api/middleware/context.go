package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

type contextKey int

const (
	ctxEmployeeID contextKey = iota
	ctxRole
	ctxTokenID
	ctxTokenExp
)

func fromContext[T any](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func withValue(ctx context.Context, key contextKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func EmployeeIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, ctxEmployeeID)
	return id
}

func RoleFromContext(ctx context.Context) enums.EmployeeRole {
	role, _ := fromContext[enums.EmployeeRole](ctx, ctxRole)
	return role
}

func TokenIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, ctxTokenID)
	return id
}

// TokenExpiryFromContext returns the token expiry and whether one was recorded.
func TokenExpiryFromContext(ctx context.Context) (time.Time, bool) {
	return fromContext[time.Time](ctx, ctxTokenExp)
}

// ActorFromContext builds the outbox actor for the authenticated employee.
// Nil when the request carries no identity.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	id, err := uuid.Parse(EmployeeIDFromContext(ctx))
	if err != nil {
		return nil
	}
	return &outbox.ActorRef{EmployeeID: id, Role: string(RoleFromContext(ctx))}
}

// WithEmployee injects the authenticated employee into the context.
func WithEmployee(ctx context.Context, employeeID string, role enums.EmployeeRole) context.Context {
	return withValue(withValue(ctx, ctxEmployeeID, employeeID), ctxRole, role)
}

func WithTokenID(ctx context.Context, tokenID string) context.Context {
	return withValue(ctx, ctxTokenID, tokenID)
}

func WithTokenExpiry(ctx context.Context, expiresAt time.Time) context.Context {
	return withValue(ctx, ctxTokenExp, expiresAt)
}
