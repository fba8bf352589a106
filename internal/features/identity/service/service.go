package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/common/validation"
	"support-relay-backend/internal/domain/chat"
	"support-relay-backend/internal/utils/random"

	initdata "github.com/telegram-mini-apps/init-data-golang"
	"golang.org/x/crypto/bcrypt"
)

const oneTimeTokenLength = 32

// Options are the credential lifetimes and Telegram secrets.
type Options struct {
	GuestTTL    time.Duration
	SessionTTL  time.Duration
	OneTimeTTL  time.Duration
	BotToken    string
	InitDataTTL time.Duration
}

// Session is an issued signed credential.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal chat.Principal `json:"principal"`
}

// TelegramProfile is what Telegram tells us about a user.
type TelegramProfile struct {
	ExternalID  string
	Username    string
	DisplayName string
}

// Service is the identity resolver: it issues and verifies credentials for
// guests, Telegram-linked users and admins.
type Service struct {
	store  chat.Store
	signer *TokenSigner
	opts   Options
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(store chat.Store, signer *TokenSigner, opts Options) *Service {
	return &Service{store: store, signer: signer, opts: opts, now: signer.now}
}

// IssueGuestIdentity creates a new guest actor and a short-lived session.
func (s *Service) IssueGuestIdentity(ctx context.Context) (*chat.Actor, *Session, error) {
	now := s.now()
	a := &chat.Actor{
		Kind:      chat.ActorGuest,
		Username:  fmt.Sprintf("guest_%d", now.UnixMilli()),
		CreatedAt: now,
	}
	if err := s.store.CreateActor(ctx, a); err != nil {
		return nil, nil, apperrors.NewStorageError("create guest", err)
	}
	sess, err := s.sign(chat.Principal{ActorID: a.ID, Role: chat.ActorGuest}, s.opts.GuestTTL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int64("actor_id", a.ID).Msg("Guest identity issued")
	return a, sess, nil
}

// IssueAdminSession checks username and secret. Failure never reveals
// whether the username exists.
func (s *Service) IssueAdminSession(ctx context.Context, username, secret string) (*chat.AdminCredential, *Session, error) {
	cred, err := s.store.GetAdminCredential(ctx, username)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		// Same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(secret))
		return nil, nil, apperrors.NewInvalidCredentialError("login failed")
	case err != nil:
		return nil, nil, apperrors.NewStorageError("get admin", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(secret)); err != nil {
		return nil, nil, apperrors.NewInvalidCredentialError("login failed")
	}

	sess, err := s.sign(chat.Principal{ActorID: cred.ID, Role: chat.ActorAdmin}, s.opts.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return cred, sess, nil
}

// RedeemTelegramToken exchanges a one-time hand-off token for a session. The
// token is consumed whether or not it has expired.
func (s *Service) RedeemTelegramToken(ctx context.Context, token string) (*chat.Actor, *Session, error) {
	if token == "" {
		return nil, nil, apperrors.NewInvalidOrExpiredTokenError()
	}
	ot, err := s.store.RedeemOneTimeToken(ctx, token)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return nil, nil, apperrors.NewInvalidOrExpiredTokenError()
	case err != nil:
		return nil, nil, apperrors.NewStorageError("redeem token", err)
	}
	if ot.Expired(s.now()) {
		return nil, nil, apperrors.NewInvalidOrExpiredTokenError()
	}

	a, err := s.store.GetActorByID(ctx, ot.ActorID)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return nil, nil, apperrors.NewInvalidOrExpiredTokenError()
	case err != nil:
		return nil, nil, apperrors.NewStorageError("get actor", err)
	}

	sess, err := s.sign(chat.Principal{ActorID: a.ID, Role: a.Kind}, s.opts.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return a, sess, nil
}

// VerifySession is a stateless signature and expiry check.
func (s *Service) VerifySession(token string) (chat.Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return chat.Principal{}, apperrors.NewInvalidCredentialError("missing token")
	}
	_, p, err := s.signer.Verify(token)
	if err != nil {
		return chat.Principal{}, apperrors.NewInvalidCredentialError(err.Error())
	}
	return p, nil
}

// RoomForToken resolves the delivery room a verified session may join.
func (s *Service) RoomForToken(_ context.Context, token string) (string, error) {
	p, err := s.VerifySession(token)
	if err != nil {
		return "", err
	}
	return p.Room(), nil
}

// Actor returns the end-user actor behind a non-admin principal.
func (s *Service) Actor(ctx context.Context, id int64) (*chat.Actor, error) {
	a, err := s.store.GetActorByID(ctx, id)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return nil, apperrors.NewNotFoundError("actor", id)
	case err != nil:
		return nil, apperrors.NewStorageError("get actor", err)
	}
	return a, nil
}

// IssueOneTimeToken stores a fresh hand-off token for actorID.
func (s *Service) IssueOneTimeToken(ctx context.Context, actorID int64) (*chat.OneTimeToken, error) {
	tok, err := random.String(oneTimeTokenLength, random.Alphanumeric)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate token")
	}
	now := s.now()
	ot := &chat.OneTimeToken{
		Token:     tok,
		ActorID:   actorID,
		ExpiresAt: now.Add(s.opts.OneTimeTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateOneTimeToken(ctx, ot); err != nil {
		return nil, apperrors.NewStorageError("create one-time token", err)
	}
	return ot, nil
}

// TelegramActor looks up a registered Telegram actor without creating one.
func (s *Service) TelegramActor(ctx context.Context, externalID string) (*chat.Actor, error) {
	a, err := s.store.GetActorByExternalID(ctx, externalID)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return nil, apperrors.NewNotFoundError("telegram actor", externalID)
	case err != nil:
		return nil, apperrors.NewStorageError("get actor by external id", err)
	}
	return a, nil
}

// ResolveTelegramActor returns the Telegram actor for p.ExternalID, creating
// it on first contact and refreshing its display name otherwise.
func (s *Service) ResolveTelegramActor(ctx context.Context, p TelegramProfile) (*chat.Actor, error) {
	if p.ExternalID == "" {
		return nil, apperrors.NewValidationError("external_id", "required")
	}
	p.DisplayName = validation.DisplayName(p.DisplayName)

	a, err := s.store.GetActorByExternalID(ctx, p.ExternalID)
	if err == nil {
		if p.DisplayName != "" && p.DisplayName != a.DisplayName {
			if err := s.store.UpdateActorDisplayName(ctx, a.ID, p.DisplayName); err != nil {
				return nil, apperrors.NewStorageError("update display name", err)
			}
			a.DisplayName = p.DisplayName
		}
		return a, nil
	}
	if !errors.Is(err, chat.ErrNotFound) {
		return nil, apperrors.NewStorageError("get actor by external id", err)
	}

	a = &chat.Actor{
		Kind:        chat.ActorTelegram,
		ExternalID:  p.ExternalID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateActor(ctx, a); err != nil {
		// Lost a race with a concurrent first contact.
		if existing, lookupErr := s.store.GetActorByExternalID(ctx, p.ExternalID); lookupErr == nil {
			return existing, nil
		}
		return nil, apperrors.NewStorageError("create telegram actor", err)
	}
	logger.Info().Int64("actor_id", a.ID).Str("external_id", a.ExternalID).Msg("Telegram actor registered")
	return a, nil
}

// AuthenticateWebApp validates Telegram Mini App init data and issues a
// session for the Telegram actor it describes.
func (s *Service) AuthenticateWebApp(ctx context.Context, rawInitData string) (*chat.Actor, *Session, error) {
	if s.opts.BotToken == "" {
		return nil, nil, apperrors.New(apperrors.ErrCodeInternal, "init-data validation is not configured")
	}
	if rawInitData == "" {
		return nil, nil, apperrors.NewInvalidCredentialError("missing init data")
	}
	if err := initdata.Validate(rawInitData, s.opts.BotToken, s.opts.InitDataTTL); err != nil {
		return nil, nil, apperrors.NewInvalidCredentialError("invalid init data")
	}
	parsed, err := initdata.Parse(rawInitData)
	if err != nil || parsed.User.ID == 0 {
		return nil, nil, apperrors.NewValidationError("init_data", "user is missing")
	}

	name := strings.TrimSpace(parsed.User.FirstName)
	if name == "" {
		name = parsed.User.Username
	}
	a, err := s.ResolveTelegramActor(ctx, TelegramProfile{
		ExternalID:  strconv.FormatInt(parsed.User.ID, 10),
		Username:    parsed.User.Username,
		DisplayName: name,
	})
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.sign(chat.Principal{ActorID: a.ID, Role: a.Kind}, s.opts.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return a, sess, nil
}

// EnsureAdmin creates the admin credential if username is not taken.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, email string) (bool, error) {
	_, err := s.store.GetAdminCredential(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, chat.ErrNotFound) {
		return false, apperrors.NewStorageError("get admin", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash admin password")
	}
	cred := &chat.AdminCredential{Username: username, PasswordHash: string(hash), Email: email, CreatedAt: s.now()}
	if err := s.store.CreateAdminCredential(ctx, cred); err != nil {
		return false, apperrors.NewStorageError("create admin", err)
	}
	return true, nil
}

func (s *Service) sign(p chat.Principal, ttl time.Duration) (*Session, error) {
	token, expires, err := s.signer.Sign(p, ttl)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue session")
	}
	return &Session{Token: token, ExpiresAt: expires, Principal: p}, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	return s.dummyHash
}
