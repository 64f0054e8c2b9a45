package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gulautos/storefront-backend/api/controllers"
	"github.com/gulautos/storefront-backend/internal/auth"
	"github.com/gulautos/storefront-backend/internal/cart"
	"github.com/gulautos/storefront-backend/internal/categories"
	"github.com/gulautos/storefront-backend/internal/media"
	"github.com/gulautos/storefront-backend/internal/orders"
	product "github.com/gulautos/storefront-backend/internal/products"
	"github.com/gulautos/storefront-backend/internal/users"
	pkgAuth "github.com/gulautos/storefront-backend/pkg/auth"
	"github.com/gulautos/storefront-backend/pkg/config"
	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/metrics"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct {
	auth.Service
}

type stubProductService struct {
	product.Service
	lastInput product.ListProductsInput
}

func (s *stubProductService) ListProducts(ctx context.Context, input product.ListProductsInput) (*product.ProductListResult, error) {
	s.lastInput = input
	page := pagination.NewPage([]product.ProductDTO{}, input.Pagination.Normalize(), 0)
	return &page, nil
}

type stubCategoryService struct {
	categories.Service
}

type stubCartService struct {
	cart.Service
}

func (stubCartService) Get(ctx context.Context, ownerID uuid.UUID) (cart.State, error) {
	return cart.State{}, nil
}

type stubOrderService struct {
	orders.Service
}

type stubMediaService struct {
	media.Service
}

func (stubMediaService) List(ctx context.Context, input media.ListMediaInput) (*media.MediaListResult, error) {
	page := pagination.NewPage([]media.MediaDTO{}, input.Pagination.Normalize(), 0)
	return &page, nil
}

type stubUserService struct {
	users.Service
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		Media: config.MediaConfig{MaxUploadMB: 1, MaxFilesPerReq: 2},
	}
}

func testParams(cfg *config.Config) Params {
	reg := prometheus.NewRegistry()
	return Params{
		Config:          cfg,
		Logger:          logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard}),
		Gatherer:        reg,
		HTTPMetrics:     metrics.NewHTTPMetrics(reg),
		Dependencies:    []controllers.Dependency{{Name: "db", Pinger: stubPinger{}}},
		Sessions:        stubSessions{},
		AuthService:     stubAuthService{},
		ProductService:  &stubProductService{},
		CategoryService: stubCategoryService{},
		CartService:     stubCartService{},
		OrderService:    stubOrderService{},
		MediaService:    stubMediaService{},
		UserService:     stubUserService{},
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	params := testParams(testConfig())
	params.Dependencies = []controllers.Dependency{
		{Name: "db", Pinger: stubPinger{}},
		{Name: "redis", Pinger: stubPinger{err: context.DeadlineExceeded}},
	}
	router := NewRouter(params)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"error"`) {
		t.Fatalf("expected redis failure in body, got %s", resp.Body.String())
	}
}

func TestCartRequiresJWT(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestCartAcceptsTokenCookie(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: buildToken(t, cfg, enums.UserRoleUser)})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))

	user := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	user.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, user)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestProductListIsPublicAndIgnoresIncludeInactiveForGuests(t *testing.T) {
	cfg := testConfig()
	params := testParams(cfg)
	products := &stubProductService{}
	params.ProductService = products
	router := NewRouter(params)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/products?includeInactive=true&sort=price_asc", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if products.lastInput.IncludeAll {
		t.Fatalf("guests must not see inactive products")
	}
	if products.lastInput.Sort != enums.ProductSortPriceAsc {
		t.Fatalf("expected price_asc sort got %q", products.lastInput.Sort)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/products?includeInactive=true", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !products.lastInput.IncludeAll {
		t.Fatalf("admins should see inactive products")
	}
}

func TestProductListRejectsUnknownSort(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/products?sort=popular", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMetricsEndpointServesRequestCounters(t *testing.T) {
	router := NewRouter(testParams(testConfig()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "/health/live") {
		t.Fatalf("expected route label in metrics output")
	}
}
