package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/internal/cart"
	"github.com/gulautos/storefront-backend/internal/users"
	pkgAuth "github.com/gulautos/storefront-backend/pkg/auth"
	"github.com/gulautos/storefront-backend/pkg/auth/session"
	"github.com/gulautos/storefront-backend/pkg/config"
	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/enums"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "gulautos",
	ExpirationMinutes:      30,
	RefreshTokenTTLMinutes: 120,
}

type stubUserRepo struct {
	byEmail   map[string]*models.User
	lastLogin map[uuid.UUID]time.Time
	createErr error
}

func newStubUserRepo(existing ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{byEmail: map[string]*models.User{}, lastLogin: map[uuid.UUID]time.Time{}}
	for _, u := range existing {
		repo.byEmail[u.Email] = u
	}
	return repo
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin[id] = at
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	for _, u := range s.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubSessionManager struct {
	sessions map[string]string
	revoked  []string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: map[string]string{}}
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.sessions[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	next := session.NewAccessID()
	token := "refresh-" + next
	s.sessions[next] = token
	return next, token, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.sessions, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

type stubCarts struct {
	emptied []uuid.UUID
	err     error
}

func (s *stubCarts) Empty(_ context.Context, ownerID uuid.UUID) (cart.Result, error) {
	s.emptied = append(s.emptied, ownerID)
	return cart.Result{State: cart.Empty()}, s.err
}

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
}

func buildTestService(t *testing.T, repo *stubUserRepo) (Service, *stubSessionManager, *stubCarts) {
	t.Helper()
	sessions := newStubSessionManager()
	carts := &stubCarts{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		Hasher:         testHasher(),
		Carts:          carts,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions, carts
}

func mustUser(t *testing.T, email, password string, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &models.User{ID: uuid.New(), Name: "Test", Email: email, PasswordHash: hash, Role: role}
}

func TestRegisterCreatesUserAndRejectsDuplicates(t *testing.T) {
	repo := newStubUserRepo()
	svc, _, _ := buildTestService(t, repo)
	ctx := context.Background()

	dto, err := svc.Register(ctx, RegisterRequest{Name: "Gul", Email: " Gul@Autos.com ", Password: "longpassword"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.Email != "gul@autos.com" || dto.Role != enums.UserRoleUser {
		t.Fatalf("unexpected dto %+v", dto)
	}
	stored := repo.byEmail["gul@autos.com"]
	if stored == nil || stored.PasswordHash == "longpassword" {
		t.Fatalf("password must be hashed, got %+v", stored)
	}

	if _, err := svc.Register(ctx, RegisterRequest{Name: "Gul", Email: "GUL@autos.com", Password: "longpassword"}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginMintsTokenWithSession(t *testing.T) {
	user := mustUser(t, "admin@gul.com", "s3cret-pass", enums.UserRoleAdmin)
	repo := newStubUserRepo(user)
	svc, sessions, _ := buildTestService(t, repo)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "ADMIN@gul.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if sessions.sessions[claims.ID] != resp.RefreshToken {
		t.Fatalf("refresh token must be stored under the jti")
	}
	if _, ok := repo.lastLogin[user.ID]; !ok {
		t.Fatalf("expected last login recorded")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	user := mustUser(t, "a@gul.com", "right-password", enums.UserRoleUser)
	svc, _, _ := buildTestService(t, newStubUserRepo(user))

	for _, req := range []LoginRequest{
		{Email: "a@gul.com", Password: "wrong-password"},
		{Email: "missing@gul.com", Password: "right-password"},
		{Email: "  ", Password: "right-password"},
	} {
		_, err := svc.Login(context.Background(), req)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized || appErr.Message() != invalidCredentialsMessage {
			t.Fatalf("expected generic unauthorized for %+v, got %v", req, err)
		}
	}
}

func TestRefreshRotatesAndPicksUpRoleChanges(t *testing.T) {
	user := mustUser(t, "r@gul.com", "password-1", enums.UserRoleUser)
	svc, sessions, _ := buildTestService(t, newStubUserRepo(user))
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: "r@gul.com", Password: "password-1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	user.Role = enums.UserRoleAdmin
	refreshed, err := svc.Refresh(ctx, user.ID, claims.ID, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	next, _ := pkgAuth.ParseAccessToken(testJWT, refreshed.AccessToken)
	if next.ID == claims.ID || next.Role != enums.UserRoleAdmin {
		t.Fatalf("expected new jti and refreshed role, got %+v", next)
	}
	if _, ok := sessions.sessions[claims.ID]; ok {
		t.Fatalf("old session should be gone")
	}

	if _, err := svc.Refresh(ctx, user.ID, claims.ID, login.RefreshToken); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("replayed refresh must be unauthorized, got %v", err)
	}
}

func TestLogoutRevokesSessionAndEmptiesCart(t *testing.T) {
	user := mustUser(t, "l@gul.com", "password-1", enums.UserRoleUser)
	svc, sessions, carts := buildTestService(t, newStubUserRepo(user))
	carts.err = errors.New("redis down")

	if err := svc.Logout(context.Background(), user.ID, "jti-1"); err != nil {
		t.Fatalf("logout should tolerate cart failures: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "jti-1" {
		t.Fatalf("expected session revoked, got %v", sessions.revoked)
	}
	if len(carts.emptied) != 1 || carts.emptied[0] != user.ID {
		t.Fatalf("expected cart emptied, got %v", carts.emptied)
	}

	if err := svc.Logout(context.Background(), user.ID, ""); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized without jti, got %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	user := mustUser(t, "c@gul.com", "password-1", enums.UserRoleUser)
	svc, _, _ := buildTestService(t, newStubUserRepo(user))

	dto, err := svc.CurrentUser(context.Background(), user.ID)
	if err != nil || dto.ID != user.ID {
		t.Fatalf("expected user, got %+v err=%v", dto, err)
	}
	if _, err := svc.CurrentUser(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	weak := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16})
	hash, err := weak.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &models.User{ID: uuid.New(), Name: "Old", Email: "old@gul.com", PasswordHash: hash, Role: enums.UserRoleUser}
	repo := newStubUserRepo(user)
	svc, _, _ := buildTestService(t, repo)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "old@gul.com", Password: "s3cret-pass"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	upgraded := repo.byEmail["old@gul.com"].PasswordHash
	if upgraded == hash {
		t.Fatal("expected the stored hash to be upgraded")
	}
	if testHasher().NeedsRehash(upgraded) {
		t.Fatalf("upgraded hash should match current params: %s", upgraded)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "old@gul.com", Password: "s3cret-pass"}); err != nil {
		t.Fatalf("login with upgraded hash: %v", err)
	}
}
