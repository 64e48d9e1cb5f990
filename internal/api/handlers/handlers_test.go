package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"store-service/internal/models"
	"store-service/internal/patch"
	"store-service/internal/repository/memory"
	"store-service/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T, opts ...service.ProductOption) *testAPI {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := memory.New()
	products := service.NewProductService(store.Products(), store, logger, opts...)
	orders := service.NewOrderService(store.Orders(), products, store, logger)

	auth, err := NewAuthenticator([]Credentials{
		{Username: "user", Password: "password", Role: "USER"},
		{Username: "user2", Password: "password", Role: "USER"},
		{Username: "admin", Password: "admin", Role: "ADMIN"},
	}, bcrypt.MinCost)
	require.NoError(t, err)

	return &testAPI{
		t: t,
		handler: NewRouter(RouterConfig{
			Products: NewProductHandler(products, logger),
			Orders:   NewOrderHandler(orders, logger),
			Health:   NewHealthHandler(nil),
			Auth:     auth,
			Logger:   logger,
		}),
	}
}

// do sends body as JSON, authenticated as user unless user is empty.
func (a *testAPI) do(method, path, user string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	switch user {
	case "":
	case "admin":
		req.SetBasicAuth("admin", "admin")
	default:
		req.SetBasicAuth(user, "password")
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) addProduct(name string, price float64, qty int) models.Product {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/products/admin/add", "admin", ProductRequest{Name: name, Price: price, Quantity: qty})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Product](a.t, rec)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/products/public/all", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/products/public/all", nil)
	req.SetBasicAuth("user", "wrong")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/products/admin/add", "user", ProductRequest{Name: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// ADMIN includes USER
	rec = api.do(http.MethodGet, "/products/public/all", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductLifecycle(t *testing.T) {
	api := newTestAPI(t)

	p := api.addProduct("lamp", 10, 5)
	assert.NotZero(t, p.ID)

	rec := api.do(http.MethodGet, fmt.Sprintf("/products/public/%d", p.ID), "user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lamp", decode[models.Product](t, rec).Name)

	rec = api.do(http.MethodPatch, fmt.Sprintf("/products/admin/%d", p.ID), "admin", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[models.Product](t, rec)
	assert.Equal(t, 0, patched.Quantity)
	assert.Equal(t, 10.0, patched.Price)

	rec = api.do(http.MethodPut, fmt.Sprintf("/products/admin/%d", p.ID), "admin", ProductRequest{Name: "bulb", Price: 1, Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bulb", decode[models.Product](t, rec).Name)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/products/admin/%d", p.ID), "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/products/admin/%d", p.ID), "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/products/public/%d", p.ID), "user", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[apiError](t, rec).Error)
}

func TestProductRequests_Rejected(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/products/public/abc", "user", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/products/admin/add", "admin", `{"name":"x","id":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "store-owned fields are unknown")

	rec = api.do(http.MethodPost, "/products/admin/add", "admin", ProductRequest{Name: "x", Price: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[apiError](t, rec).Error)
}

func TestProductPatch_BrokenSchemaIsServerError(t *testing.T) {
	api := newTestAPI(t, service.WithPatchSchema(&patch.Schema[models.Product, models.ProductPatch]{}))
	p := api.addProduct("lamp", 10, 5)

	rec := api.do(http.MethodPatch, fmt.Sprintf("/products/admin/%d", p.ID), "admin", `{"quantity":1}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, "patch_failed", decode[apiError](t, rec).Error)
}

func TestProductQuantity_Int32Bound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/products/admin/add", "admin", `{"name":"big","price":1,"quantity":2147483648}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	p := api.addProduct("max", 1, 2147483647)
	assert.Equal(t, 2147483647, p.Quantity)

	rec = api.do(http.MethodPatch, fmt.Sprintf("/products/admin/%d", p.ID), "admin", `{"quantity":2147483648}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/products/public/expensive-low-stock?minPrice=0&maxQuantity=3000000000", "user", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// accepted, and the stored maximum is not strictly below it
	rec = api.do(http.MethodGet, "/products/public/expensive-low-stock?minPrice=0&maxQuantity=2147483647", "user", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProductDuplicateName_IntegrityViolation(t *testing.T) {
	api := newTestAPI(t)
	api.addProduct("lamp", 10, 5)

	rec := api.do(http.MethodPost, "/products/admin/add", "admin", ProductRequest{Name: "lamp", Price: 1})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, "integrity_violation", body.Error)
	assert.Contains(t, body.Message, "Data integrity violation: ")
}

func TestExpensiveLowStock(t *testing.T) {
	api := newTestAPI(t)
	api.addProduct("p25", 25, 5)
	api.addProduct("p15", 15, 5)
	api.addProduct("p30", 30, 20)

	rec := api.do(http.MethodGet, "/products/public/expensive-low-stock?minPrice=20&maxQuantity=10", "user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]models.Product](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "p25", got[0].Name)

	rec = api.do(http.MethodGet, "/products/public/expensive-low-stock?minPrice=100&maxQuantity=10", "user", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = api.do(http.MethodGet, "/products/public/expensive-low-stock?minPrice=abc&maxQuantity=10", "user", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders(t *testing.T) {
	api := newTestAPI(t)
	widget := api.addProduct("widget", 10, 3)

	rec := api.do(http.MethodPost, "/orders", "user", CreateOrderRequest{Items: []models.LineRequest{{ProductID: widget.ID, Quantity: 3}}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, "user", order.Username)
	require.Len(t, order.Lines, 1)

	rec = api.do(http.MethodPost, "/orders", "user", CreateOrderRequest{Items: []models.LineRequest{{ProductID: widget.ID, Quantity: 4}}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, "insufficient_quantity", body.Error)
	assert.Contains(t, body.Message, "quantity available is 3")

	rec = api.do(http.MethodPost, "/orders", "user", CreateOrderRequest{Items: []models.LineRequest{{ProductID: 999, Quantity: 1}}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/orders", "user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Order](t, rec), 1)

	path := fmt.Sprintf("/orders/%d", order.ID)

	rec = api.do(http.MethodGet, path, "user2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, path, "user2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, path, "user", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodDelete, path, "user", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, path, "user", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrders_DeleteAllIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	p := api.addProduct("p", 1, 10)

	for _, u := range []string{"user", "user2"} {
		rec := api.do(http.MethodPost, "/orders", u, CreateOrderRequest{Items: []models.LineRequest{{ProductID: p.ID, Quantity: 1}}})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := api.do(http.MethodDelete, "/orders/admin/all", "user", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, "/orders/admin/all", "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/orders", "user2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Order](t, rec))
}

func TestOrders_EmptyItemsRejected(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/orders", "user", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("role_admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	assert.True(t, RoleAdmin.Includes(RoleUser))
	assert.False(t, RoleUser.Includes(RoleAdmin))

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestNewAuthenticator_AcceptsHashes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	a, err := NewAuthenticator([]Credentials{{Username: "ops", Password: string(hash), Role: "ADMIN"}}, bcrypt.MinCost)
	require.NoError(t, err)

	p, ok := a.authenticate("ops", "s3cret")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, p.Role)

	_, err = NewAuthenticator([]Credentials{{Username: "a", Password: "x", Role: "USER"}, {Username: "a", Password: "y", Role: "USER"}}, bcrypt.MinCost)
	assert.Error(t, err)
}
