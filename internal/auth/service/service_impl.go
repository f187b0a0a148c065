package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/auth/domain"
	"github.com/smallbiznis/invoray/internal/auth/password"
	"github.com/smallbiznis/invoray/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	sessionTokenBytes = 32
	minPasswordLength = 8
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	sessionTTL time.Duration
}

func NewService(p Params) domain.Service {
	ttl := time.Duration(p.Cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		log:        p.Log.Named("auth.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		sessionTTL: ttl,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashed,
		Metadata:     datatypes.JSONMap{},
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(s.sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrSessionRevoked) {
			return nil
		}
		return err
	}
	return s.repo.RevokeSession(ctx, session.ID, time.Now().UTC())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TouchSession(ctx, session.ID, time.Now().UTC()); err != nil {
		s.log.Warn("touch session failed", zap.Error(err))
	}
	return session, nil
}

func (s *Service) GetUser(ctx context.Context, userID snowflake.ID) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) lookupSession(ctx context.Context, rawToken string) (*domain.Session, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.repo.GetSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
