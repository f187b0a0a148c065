package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id snowflake.ID) (*User, error)
	CreateSession(ctx context.Context, session Session) error
	GetSessionByTokenHash(ctx context.Context, hash string) (*Session, error)
	TouchSession(ctx context.Context, id snowflake.ID, seenAt time.Time) error
	RevokeSession(ctx context.Context, id snowflake.ID, revokedAt time.Time) error
}
