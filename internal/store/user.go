package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/kalakari/storefront/repositorycache"
	"github.com/uptrace/bun"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

// NewUserRepository builds the go-repository-bun repository for users. The email is
// the natural identifier.
func NewUserRepository(db *bun.DB) repository.Repository[*domain.User] {
	return repository.NewRepository[*domain.User](db, repository.ModelHandlers[*domain.User]{
		NewRecord: func() *domain.User { return &domain.User{} },
		GetID: func(u *domain.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID:         func(u *domain.User, id uuid.UUID) { u.ID = id },
		GetIdentifier: func() string { return "email" },
	})
}

// UserStore manages accounts.
type UserStore struct {
	db     *bun.DB
	repo   *repositorycache.CachedRepository[*domain.User]
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

func NewUserStore(db *bun.DB, cacheService cache.CacheService, hasher PasswordHasher, logger *slog.Logger) *UserStore {
	if logger == nil {
		logger = slog.Default()
	}
	repo := repositorycache.New(NewUserRepository(db), cacheService,
		repositorycache.WithNamespace(cache.NamespaceUsers),
		repositorycache.WithLogger(logger),
	)
	return &UserStore{
		db:     db,
		repo:   repo,
		hasher: hasher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a customer account.
func (s *UserStore) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	return s.create(ctx, in.Email, in.Password, strings.TrimSpace(in.Name), domain.NormalizePhone(in.Phone), domain.RoleCustomer)
}

func (s *UserStore) create(ctx context.Context, email, password, name, phone string, role domain.Role) (*domain.User, error) {
	taken, err := storage.Conn(ctx, s.db).NewSelect().Model((*domain.User)(nil)).Where("u.email = ?", email).Exists(ctx)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("check email: %w", err), "failed to create account")
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.Internal(err, "failed to create account")
	}
	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Phone:        phone,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if storage.IsUniqueViolation(err) || domain.HasCategory(err, goerrors.CategoryConflict) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.Internal(fmt.Errorf("insert user: %w", err), "failed to create account")
	}
	return created, nil
}

// EnsureAdmin creates the admin account, or promotes an existing account with the
// same email. The password of an existing account is left alone.
func (s *UserStore) EnsureAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = normalizeEmail(email)
	existing, err := s.repo.Base().GetByIdentifier(ctx, email)
	switch {
	case err == nil:
		if existing.Role == domain.RoleAdmin {
			return existing, nil
		}
		existing.Role = domain.RoleAdmin
		existing.UpdatedAt = s.now()
		updated, err := s.repo.Update(ctx, existing)
		if err != nil {
			return nil, domain.Internal(fmt.Errorf("promote %s: %w", email, err), "failed to seed admin")
		}
		s.logger.InfoContext(ctx, "promoted existing account to admin", slog.String("email", email))
		return updated, nil
	case domain.IsNotFound(err):
		user, err := s.create(ctx, email, password, name, "", domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "seeded admin account", slog.String("email", email))
		return user, nil
	default:
		return nil, domain.Internal(fmt.Errorf("find admin %s: %w", email, err), "failed to seed admin")
	}
}

// Authenticate checks credentials. Unknown emails and wrong passwords produce the
// same error.
func (s *UserStore) Authenticate(ctx context.Context, in domain.LoginInput) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	user, err := s.repo.Base().GetByIdentifier(ctx, in.Email)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal(fmt.Errorf("find user: %w", err), "failed to sign in")
	}
	ok, err := s.hasher.Verify(user.PasswordHash, in.Password)
	if err != nil {
		return nil, domain.Internal(err, "failed to sign in")
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, translate(err, "user", id, "failed to load user")
	}
	return user, nil
}

// UpdateProfile changes the caller's own details.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, in domain.ProfileInput) (*domain.User, error) {
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	user, err := s.repo.Base().GetByID(ctx, id.String())
	if err != nil {
		return nil, translate(err, "user", id, "failed to load user")
	}
	in.Apply(user)
	user.UpdatedAt = s.now()
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("update user %s: %w", id, err), "failed to update profile")
	}
	return updated, nil
}

// List returns accounts newest first.
func (s *UserStore) List(ctx context.Context, page Pagination) (Page[*domain.User], error) {
	page = page.Normalize()
	records, total, err := s.repo.ListKeyed(ctx, page, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("created_at DESC").Limit(page.Limit).Offset(page.Offset())
	})
	if err != nil {
		return Page[*domain.User]{}, translate(err, "user", nil, "failed to list users")
	}
	return newPage(records, total, page.Page, page.Limit), nil
}
