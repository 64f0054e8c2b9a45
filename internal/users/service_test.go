package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gulautos/storefront-backend/pkg/db/dbtest"
	"github.com/gulautos/storefront-backend/pkg/enums"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

func TestRepositoryNormalizesEmail(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{Name: " Ana ", Email: "  Ana@Example.COM ", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "ana@example.com" || created.Name != "Ana" || created.Role != enums.UserRoleUser {
		t.Fatalf("unexpected user %+v", created)
	}

	found, err := repo.FindByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected same user")
	}
}

func TestUpdateRole(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	admin, _ := repo.Create(ctx, CreateUserDTO{Name: "Root", Email: "root@example.com", PasswordHash: "h", Role: enums.UserRoleAdmin})
	user, _ := repo.Create(ctx, CreateUserDTO{Name: "Bea", Email: "bea@example.com", PasswordHash: "h"})

	promoted, err := svc.UpdateRole(ctx, admin.ID, user.ID, "ADMIN")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin, got %s", promoted.Role)
	}

	if _, err := svc.UpdateRole(ctx, admin.ID, admin.ID, "user"); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden self-demotion, got %v", err)
	}
	if _, err := svc.UpdateRole(ctx, admin.ID, user.ID, "owner"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateRole(ctx, admin.ID, uuid.New(), "user"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListUsersSearch(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, _ := NewService(repo)
	ctx := context.Background()

	for _, u := range []CreateUserDTO{
		{Name: "Carlos Ruiz", Email: "carlos@example.com", PasswordHash: "h"},
		{Name: "Dana", Email: "dana@shop.test", PasswordHash: "h"},
		{Name: "Eve", Email: "eve_ruiz@example.com", PasswordHash: "h"},
	} {
		if _, err := repo.Create(ctx, u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := svc.ListUsers(ctx, ListUsersInput{Search: "ruiz", Pagination: pagination.Params{Page: 1, Limit: 10}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", page.Total)
	}

	page, err = svc.ListUsers(ctx, ListUsersInput{Search: "_"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].Name != "Eve" {
		t.Fatalf("underscore must match literally, got %+v", page.Items)
	}
}

func TestRepositoryUpdatesCredentialColumns(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Name: "Cy", Email: "cy@example.com", PasswordHash: "old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdatePasswordHash(ctx, user.ID, "new"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	got, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PasswordHash != "new" {
		t.Fatalf("expected new hash, got %q", got.PasswordHash)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(now) {
		t.Fatalf("unexpected last login %v", got.LastLoginAt)
	}
	if _, err := repo.FindByID(ctx, uuid.New()); err == nil {
		t.Fatal("expected not found for unknown id")
	}
}
