// Package services contains server-side business logic. This file implements
// UserService: registration, password and token login, and the administrative
// operations on identities (ban, unban, grant).
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/server/auth"
	"github.com/dmitrijs2005/pdcc/internal/server/config"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type UserService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	jwtSecret             []byte
	tokenValidityDuration time.Duration
	bcryptCost            int
	admins                map[string]struct{}
	adminLevel            int
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, name := range cfg.Admins {
		admins[name] = struct{}{}
	}
	return &UserService{
		db:                    db,
		repomanager:           m,
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		bcryptCost:            cfg.BcryptCost,
		admins:                admins,
		adminLevel:            cfg.AdminLevel(),
	}
}

// Register creates an identity at models.LevelUser, or at the admin level for
// a configured admin name. It does not log anybody in.
// A taken username yields common.ErrorAlreadyExists and leaves the stored
// identity untouched.
func (s *UserService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", errors.Join(common.ErrorInternal, err))
	}

	level := models.LevelUser
	if _, ok := s.admins[userName]; ok {
		level = s.adminLevel
	}

	user := &models.User{UserName: userName, PasswordHash: hash, Permission: level}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, storeError("error creating user", err)
	}
	return u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield common.ErrorUnauthorized; a banned account yields
// common.ErrorBanned only once the password matched.
func (s *UserService) Authenticate(ctx context.Context, userName, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, storeError("error fetching user", err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("error comparing password: %w", errors.Join(common.ErrorInternal, err))
	}

	if user.Banned {
		return nil, common.ErrorBanned
	}
	return user, nil
}

// AuthenticateToken resolves a reauthentication token to its identity without
// a password check. A token naming a vanished account is reported as invalid.
func (s *UserService) AuthenticateToken(ctx context.Context, token string) (*models.User, error) {
	userName, err := auth.GetUserNameFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, storeError("error fetching user", err)
	}

	if user.Banned {
		return nil, common.ErrorBanned
	}
	return user, nil
}

// SeedAdmins raises every configured admin that already exists to the admin
// level. Admins not registered yet are returned; they get the level when
// they register.
func (s *UserService) SeedAdmins(ctx context.Context) (missing []string, err error) {
	repo := s.repomanager.Users(s.db)
	for name := range s.admins {
		if err := repo.SetPermission(ctx, name, s.adminLevel); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				missing = append(missing, name)
				continue
			}
			return nil, storeError("error seeding admin "+name, err)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func (s *UserService) IssueToken(userName string) (string, error) {
	return auth.GenerateToken(userName, s.jwtSecret, s.tokenValidityDuration)
}

// Lookup resolves identifier as an identity id when it parses as a UUID and
// falls back to a username match otherwise.
func (s *UserService) Lookup(ctx context.Context, identifier string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", common.ErrorValidation)
	}

	if _, err := uuid.Parse(identifier); err == nil {
		user, err := repo.GetByID(ctx, identifier)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, storeError("error fetching user", err)
		}
	}

	user, err := repo.GetUserByLogin(ctx, identifier)
	if err != nil {
		return nil, storeError("error fetching user", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, storeError("error fetching user", err)
	}
	return user, nil
}

// Usernames resolves ids to usernames. Ids that are not UUIDs cannot name a
// user and are left out of the result like any other unknown id.
func (s *UserService) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return map[string]string{}, nil
	}

	names, err := s.repomanager.Users(s.db).GetUsernames(ctx, valid)
	if err != nil {
		return nil, storeError("error resolving usernames", err)
	}
	return names, nil
}

func (s *UserService) Ban(ctx context.Context, userName string) error {
	if err := s.repomanager.Users(s.db).SetBanned(ctx, userName, true); err != nil {
		return storeError("error banning user", err)
	}
	return nil
}

func (s *UserService) Unban(ctx context.Context, userName string) error {
	if err := s.repomanager.Users(s.db).SetBanned(ctx, userName, false); err != nil {
		return storeError("error unbanning user", err)
	}
	return nil
}

func (s *UserService) ListBanned(ctx context.Context) ([]string, error) {
	users, err := s.repomanager.Users(s.db).ListBanned(ctx)
	if err != nil {
		return nil, storeError("error listing banned users", err)
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.UserName)
	}
	return names, nil
}

// Grant sets userName's permission level. Levels outside
// [LevelUser, LevelConsole) are rejected.
func (s *UserService) Grant(ctx context.Context, userName string, level int) error {
	if level < models.LevelUser || level >= models.LevelConsole {
		return fmt.Errorf("%w: level %d is out of range", common.ErrorValidation, level)
	}
	if err := s.repomanager.Users(s.db).SetPermission(ctx, userName, level); err != nil {
		return storeError("error granting permission", err)
	}
	return nil
}

// storeError keeps business-rule sentinels visible and marks everything else
// as common.ErrorInternal while preserving the cause.
func storeError(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorAlreadyExists) {
		return err
	}
	return fmt.Errorf("%s: %w", op, errors.Join(common.ErrorInternal, err))
}
