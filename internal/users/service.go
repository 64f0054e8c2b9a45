package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/enums"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// Service exposes the admin user directory.
type Service interface {
	ListUsers(ctx context.Context, input ListUsersInput) (*UserListResult, error)
	UpdateRole(ctx context.Context, actorID, userID uuid.UUID, role string) (*UserDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListUsers(ctx context.Context, input ListUsersInput) (*UserListResult, error) {
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, pagination.NormalizeSearch(input.Search), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	items := make([]UserDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	page := pagination.NewPage(items, params, total)
	return &page, nil
}

// UpdateRole changes a user's role. Admins cannot demote themselves so the
// system always keeps the acting admin.
func (s *service) UpdateRole(ctx context.Context, actorID, userID uuid.UUID, role string) (*UserDTO, error) {
	parsed, err := enums.ParseUserRole(role)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be user or admin")
	}
	if actorID == userID && parsed != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admins cannot demote themselves")
	}

	updated, err := s.repo.UpdateRole(ctx, userID, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	if !updated {
		return nil, pkgerrors.NotFound("user")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}
