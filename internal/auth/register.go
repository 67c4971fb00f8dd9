package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/internal/albums"
	"github.com/dcastano/framevault-backend/internal/users"
	"github.com/dcastano/framevault-backend/pkg/config"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/security"
)

const mainAlbumName = "Main Album"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterService handles the onboarding transaction. A new user gets their
// main album and default quota in the same commit that creates the account.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	Tx             txRunner
	PasswordConfig config.PasswordConfig
	QuotaConfig    config.QuotaConfig
}

type registerService struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
	quotaCfg    config.QuotaConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &registerService{
		tx:          params.Tx,
		passwordCfg: params.PasswordConfig,
		quotaCfg:    params.QuotaConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.ContainsAny(username, " \t") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username must not contain whitespace")
	}
	if !req.AcceptTOS {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accept_tos must be true")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var out *users.UserDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		albumRepo := albums.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if _, err := userRepo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			Username:     username,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			TotalBytes:   s.quotaCfg.DefaultTotalBytes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		album := models.Album{
			ID:      uuid.New(),
			OwnerID: user.ID,
			Kind:    enums.AlbumKindMain,
			Name:    mainAlbumName,
		}
		if err := albumRepo.CreateTx(tx, &album); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create main album")
		}
		if err := userRepo.SetMainAlbum(ctx, user.ID, album.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link main album")
		}
		user.MainAlbumID = &album.ID

		out = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
