package accounts

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/ariefcatur/storefront-orders/internal/apperr"
	"github.com/ariefcatur/storefront-orders/internal/credential"
	"github.com/ariefcatur/storefront-orders/internal/events"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
)

const (
	msgFieldsRequired  = "name, email, password and address are required"
	msgEmailTaken      = "email already registered"
	msgBadCredentials  = "invalid email or password"
	msgTooManyAttempts = "too many failed login attempts, try again later"
	msgPasswordTooLong = "password must be at most 72 bytes"
)

type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	NeedsRehash(hash string) bool
}

// LoginLimiter counts failed logins per key. Implementations live outside the
// process (Redis), so the service itself stays stateless.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type Service struct {
	Repo     Repository
	Hasher   Hasher
	Limiter  LoginLimiter
	Events   events.Publisher
	Log      logging.Logger
	Producer string

	dummyOnce sync.Once
	dummyHash string
}

func NewService(repo Repository, hasher Hasher, log logging.Logger) *Service {
	return &Service{Repo: repo, Hasher: hasher, Log: log, Events: events.Nop{}}
}

// Register stores a new account and returns its id. Uniqueness of the email is
// decided by the store's constraint inside the single INSERT.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	if blank(in.Name) || blank(in.Email) || blank(in.Password) || blank(in.Address) {
		return 0, apperr.Validation(msgFieldsRequired, nil)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, credential.ErrPasswordTooLong) {
			return 0, apperr.Validation(msgPasswordTooLong, err)
		}
		return 0, apperr.Store(apperr.GenericStoreMessage, err)
	}

	id, err := s.Repo.Create(ctx, Account{Name: in.Name, Email: in.Email, PasswordHash: hash, Address: in.Address})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return 0, apperr.Conflict(msgEmailTaken, err)
		}
		return 0, apperr.Store(apperr.GenericStoreMessage, err)
	}

	s.publish(ctx, id, events.EventAccountRegistered, events.AccountRegisteredPayload{
		AccountID: id, Name: in.Name, Email: in.Email,
	})
	return id, nil
}

// Login returns the account view when the password matches. Unknown email and
// wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (View, error) {
	key := limiterKey(email)
	if s.Limiter != nil {
		blocked, err := s.Limiter.Blocked(ctx, key)
		if err != nil {
			s.Log.Warn(ctx, "login limiter unavailable", "error", err)
		} else if blocked {
			return View{}, apperr.RateLimited(msgTooManyAttempts, nil)
		}
	}

	if blank(email) || password == "" {
		return View{}, s.loginFailed(ctx, key)
	}

	acc, err := s.Repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		// burn the same work a real verification costs
		s.Hasher.Verify(password, s.dummy())
		return View{}, s.loginFailed(ctx, key)
	case err != nil:
		return View{}, apperr.Store(apperr.GenericStoreMessage, err)
	}

	if !s.Hasher.Verify(password, acc.PasswordHash) {
		return View{}, s.loginFailed(ctx, key)
	}

	if s.Limiter != nil {
		if err := s.Limiter.Reset(ctx, key); err != nil {
			s.Log.Warn(ctx, "login limiter reset failed", "error", err)
		}
	}
	if s.Hasher.NeedsRehash(acc.PasswordHash) {
		s.rehash(ctx, acc.ID, password)
	}
	return acc.View(), nil
}

// rehash upgrades a stored hash to the current cost. The login already
// succeeded, so failures are only logged.
func (s *Service) rehash(ctx context.Context, accountID int64, password string) {
	hash, err := s.Hasher.Hash(password)
	if err == nil {
		err = s.Repo.UpdatePasswordHash(ctx, accountID, hash)
	}
	if err != nil {
		s.Log.Warn(ctx, "password rehash failed", "account_id", accountID, "error", err)
	}
}

func (s *Service) loginFailed(ctx context.Context, key string) error {
	if s.Limiter != nil {
		if err := s.Limiter.RecordFailure(ctx, key); err != nil {
			s.Log.Warn(ctx, "login limiter record failed", "error", err)
		}
	}
	return apperr.Authentication(msgBadCredentials, nil)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("storefront-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *Service) publish(ctx context.Context, accountID int64, eventType string, payload any) {
	if s.Events == nil {
		return
	}
	id := strconv.FormatInt(accountID, 10)
	env, err := events.NewEnvelope(eventType, s.Producer, logging.RequestID(ctx), events.PartitionKey(accountID), id, payload)
	if err == nil {
		err = s.Events.Publish(ctx, env)
	}
	if err != nil {
		s.Log.Warn(ctx, "publish event failed", "event_type", eventType, "account_id", accountID, "error", err)
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func limiterKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
