// Package orgcontext carries the authenticated principal and active
// organization through the request context. Handlers resolve both once and
// every service reads them from context instead of ambient state.
package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type orgKey struct{}
type userKey struct{}

// WithOrgID stores the active organization ID in the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID snowflake.ID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, orgKey{})
}

// UserIDFromContext returns the user ID from context, if set.
func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, userKey{})
}

func idFromContext(ctx context.Context, key any) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(key).(type) {
	case snowflake.ID:
		return typed, true
	case int64:
		return snowflake.ID(typed), true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
