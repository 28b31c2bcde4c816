package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/docs"
	"github.com/MikeMC777/mia-shop/internal/auth"
	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/config"
	"github.com/MikeMC777/mia-shop/internal/httpx"
	"github.com/MikeMC777/mia-shop/internal/memstore"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/payment"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/review"
	"github.com/MikeMC777/mia-shop/internal/user"
	"github.com/MikeMC777/mia-shop/internal/vnpay"
	"github.com/MikeMC777/mia-shop/internal/wishlist"
)

const vnpSecret = "TESTSECRET"

var paramPattern = regexp.MustCompile(`:([a-z_]+)`)

//
// ---------- HARNESS ----------
//

type harness struct {
	t      *testing.T
	db     *memstore.DB
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := memstore.New()
	log := zap.NewNop()
	tokens, err := auth.NewManager("test-secret", 30*time.Minute, time.Hour)
	require.NoError(t, err)
	gateway, err := vnpay.NewClient(config.VNPay{
		TmnCode:   "MIA00001",
		SecretKey: vnpSecret,
		URL:       "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL: "http://localhost:3000/payment/callback",
	})
	require.NoError(t, err)

	carts := cart.NewService(mem.Carts(), mem.Products(), cart.NoopCache{}, log)
	a := &app{
		users:    user.NewService(mem.Users(), tokens, log),
		tokens:   tokens,
		products: mem.Products(),
		carts:    carts,
		orders:   order.NewService(mem.Orders(), carts, log),
		payments: payment.NewService(mem.Orders(), gateway, log),
		wishlist: wishlist.NewService(mem.Wishlist(), mem.Products()),
		reviews:  review.NewService(mem.Reviews(), mem.Products(), mem.Users(), log),
		log:      log,
	}
	r := gin.New()
	r.Use(httpx.RequestID())
	registerRoutes(r, a)
	return &harness{t: t, db: mem, router: r}
}

func (h *harness) do(method, target, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(h.t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (h *harness) register(email string) auth.Pair {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": email, "password": "s3cretpass",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[auth.Pair](h.t, w)
}

func (h *harness) product(price string, stock int, active bool) *product.Product {
	h.t.Helper()
	name := "prod-" + uuid.NewString()[:8]
	p := &product.Product{
		ID:            uuid.NewString(),
		Name:          name,
		Slug:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		SKU:           "SKU-" + name,
		IsActive:      active,
	}
	require.NoError(h.t, h.db.Products().Create(context.Background(), p))
	return p
}

var shipping = map[string]any{
	"shipping_info": map[string]any{
		"shipping_name":    "Ana Pérez",
		"shipping_phone":   "0901234567",
		"shipping_address": "12 Le Loi",
		"shipping_city":    "Ho Chi Minh",
	},
}

// gatewayReturn re-signs the parameters of a payment URL the way the
// gateway does when it redirects the shopper back.
func gatewayReturn(t *testing.T, paymentURL, responseCode string) string {
	t.Helper()
	u, err := url.Parse(paymentURL)
	require.NoError(t, err)
	p := map[string]string{}
	for k, v := range u.Query() {
		p[k] = v[0]
	}
	delete(p, vnpay.SignatureField)
	p["vnp_ResponseCode"] = responseCode
	p["vnp_TransactionStatus"] = responseCode
	p["vnp_TransactionNo"] = "14226112"
	p[vnpay.SignatureField] = vnpay.Sign(p, vnpSecret)
	return "/api/v1/payments/callback?" + vnpay.Canonical(p)
}

//
// ---------- TESTS ----------
//

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	h := newHarness(t)
	pair := h.register("Ana@Example.com")
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "bearer", pair.TokenType)

	w := h.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "ana@example.com", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pair.RefreshToken, decode[auth.Pair](t, w).RefreshToken)

	// an access token is not a refresh token
	w = h.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_InvalidBody(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/v1/auth/register", "", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodPost, "/api/v1/payments/create"},
		{http.MethodGet, "/api/v1/wishlist"},
	} {
		w := h.do(tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGetProduct_HidesInactive(t *testing.T) {
	h := newHarness(t)
	on := h.product("10.00", 1, true)
	off := h.product("10.00", 1, false)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/products/"+on.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/products/"+off.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/products/"+uuid.NewString(), "", nil).Code)
}

func TestCheckoutAndPay_HappyPath(t *testing.T) {
	h := newHarness(t)
	tok := h.register("buyer@example.com").AccessToken
	p := h.product("150000.00", 5, true)

	w := h.do(http.MethodPost, "/api/v1/cart/items", tok, map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/v1/orders", tok, shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "0", w.Header().Get(headerSkippedLines))
	o := decode[order.Order](t, w)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("300000")), o.Subtotal.String())
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, h.db.Products().Stock(p.ID))

	w = h.do(http.MethodGet, "/api/v1/cart", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[cart.View](t, w).Items)

	w = h.do(http.MethodPost, "/api/v1/payments/create", tok, map[string]any{"order_number": o.Number})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payURL := decode[payment.CreateResponse](t, w).PaymentURL
	assert.Contains(t, payURL, "vnp_TxnRef="+o.Number)

	w = h.do(http.MethodGet, gatewayReturn(t, payURL, "00"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[payment.CallbackResponse](t, w)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, o.Number, res.OrderNumber)

	w = h.do(http.MethodGet, "/api/v1/orders/number/"+o.Number, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.PaymentPaid, decode[order.Order](t, w).PaymentStatus)

	// paying twice is refused
	w = h.do(http.MethodPost, "/api/v1/payments/create", tok, map[string]any{"order_number": o.Number})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Order already paid"}`, w.Body.String())
}

func TestCreateOrder_Errors(t *testing.T) {
	h := newHarness(t)
	tok := h.register("errors@example.com").AccessToken

	w := h.do(http.MethodPost, "/api/v1/orders", tok, `{"shipping_info":{"shipping_name":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/v1/orders", tok, shipping)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Cart is empty"}`, w.Body.String())

	p := h.product("20.00", 3, true)
	w = h.do(http.MethodPost, "/api/v1/cart/items", tok, map[string]any{"product_id": p.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	h.db.Products().SetStock(p.ID, 1)

	w = h.do(http.MethodPost, "/api/v1/orders", tok, shipping)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"error":"Insufficient stock for product %s"}`, p.Name), w.Body.String())
	assert.Equal(t, 1, h.db.Products().Stock(p.ID))
}

func TestOrders_ListGetAndOwnership(t *testing.T) {
	h := newHarness(t)
	owner := h.register("owner@example.com").AccessToken
	other := h.register("other@example.com").AccessToken
	p := h.product("5.00", 10, true)

	var created order.Order
	for i := 0; i < 3; i++ {
		w := h.do(http.MethodPost, "/api/v1/cart/items", owner, map[string]any{"product_id": p.ID, "quantity": 1})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		w = h.do(http.MethodPost, "/api/v1/orders", owner, shipping)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		created = decode[order.Order](t, w)
	}

	w := h.do(http.MethodGet, "/api/v1/orders?page=2&page_size=2", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[order.ListResponse](t, w)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.TotalPages)
	assert.Len(t, list.Items, 1)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/orders/"+created.ID, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/orders/"+created.ID, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/orders/number/"+created.Number, other, nil).Code)

	w = h.do(http.MethodPatch, "/api/v1/orders/"+created.ID, owner, map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPatch, "/api/v1/orders/"+created.ID, owner, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, order.StatusCancelled, decode[order.Order](t, w).Status)
}

func TestUpdateOrder_OwnerCannotMarkPaid(t *testing.T) {
	h := newHarness(t)
	owner := h.register("buyer@example.com").AccessToken
	p := h.product("12.00", 5, true)
	h.do(http.MethodPost, "/api/v1/cart/items", owner, map[string]any{"product_id": p.ID, "quantity": 1})
	w := h.do(http.MethodPost, "/api/v1/orders", owner, shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decode[order.Order](t, w)

	for _, body := range []map[string]any{
		{"payment_status": "paid"},
		{"status": "delivered"},
		{"status": "cancelled", "payment_status": "refunded"},
	} {
		w = h.do(http.MethodPatch, "/api/v1/orders/"+o.ID, owner, body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%v", body)
	}
	got, err := h.db.Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
	assert.Equal(t, order.StatusPending, got.Status)

	// a superuser can move any order along
	admin := h.register("staff@example.com").AccessToken
	staff, err := h.db.Users().GetByEmail(context.Background(), "staff@example.com")
	require.NoError(t, err)
	h.db.Users().SetSuperuser(staff.ID, true)

	w = h.do(http.MethodPatch, "/api/v1/orders/"+o.ID, admin, map[string]any{"status": "shipped", "payment_status": "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[order.Order](t, w)
	assert.Equal(t, order.StatusShipped, updated.Status)
	assert.Equal(t, order.PaymentPaid, updated.PaymentStatus)
}

func TestPaymentCallback_Rejections(t *testing.T) {
	h := newHarness(t)
	tok := h.register("cb@example.com").AccessToken
	p := h.product("99.50", 2, true)
	h.do(http.MethodPost, "/api/v1/cart/items", tok, map[string]any{"product_id": p.ID, "quantity": 1})
	w := h.do(http.MethodPost, "/api/v1/orders", tok, shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decode[order.Order](t, w)

	w = h.do(http.MethodPost, "/api/v1/payments/create", tok, map[string]any{"order_number": o.Number})
	require.Equal(t, http.StatusOK, w.Code)
	payURL := decode[payment.CreateResponse](t, w).PaymentURL

	// declined by the bank
	w = h.do(http.MethodGet, gatewayReturn(t, payURL, "24"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[payment.CallbackResponse](t, w).Success)

	// forged signature
	w = h.do(http.MethodGet, "/api/v1/payments/callback?vnp_TxnRef="+o.Number+"&vnp_ResponseCode=00&vnp_SecureHash=deadbeef", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[payment.CallbackResponse](t, w)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid signature", res.Message)

	got, err := h.db.Orders().GetByNumber(context.Background(), o.Number)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	h := newHarness(t)
	tok := h.register("cart@example.com").AccessToken
	p := h.product("3.00", 10, true)

	w := h.do(http.MethodPost, "/api/v1/cart/items", tok, map[string]any{"product_id": p.ID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/v1/cart/items", tok, map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[cart.Item](t, w)

	w = h.do(http.MethodPatch, "/api/v1/cart/items/"+item.ID, tok, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, decode[cart.Item](t, w).Quantity)

	w = h.do(http.MethodGet, "/api/v1/cart", tok, nil)
	v := decode[cart.View](t, w)
	assert.Equal(t, 4, v.TotalItems)
	assert.True(t, v.TotalPrice.Equal(decimal.RequireFromString("12")), v.TotalPrice.String())

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/v1/cart/items/"+item.ID, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/v1/cart/items/"+item.ID, tok, nil).Code)
}

func TestWishlist_Flow(t *testing.T) {
	h := newHarness(t)
	tok := h.register("wish@example.com").AccessToken
	p := h.product("8.00", 1, true)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/v1/wishlist/items", tok, nil).Code)

	w := h.do(http.MethodPost, "/api/v1/wishlist/items?product_id="+p.ID, tok, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	it := decode[wishlist.Item](t, w)

	w = h.do(http.MethodPost, "/api/v1/wishlist/items?product_id="+p.ID, tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/v1/wishlist/check/"+p.ID, tok, nil)
	assert.JSONEq(t, `{"in_wishlist":true}`, w.Body.String())

	w = h.do(http.MethodGet, "/api/v1/wishlist", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]wishlist.Item](t, w), 1)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/v1/wishlist/items/"+it.ID, tok, nil).Code)
	w = h.do(http.MethodGet, "/api/v1/wishlist/check/"+p.ID, tok, nil)
	assert.JSONEq(t, `{"in_wishlist":false}`, w.Body.String())
}

func TestMalformedIDs_AreNotFound(t *testing.T) {
	h := newHarness(t)
	tok := h.register("ids@example.com").AccessToken

	cases := []struct {
		method string
		path   string
		body   any
		msg    string
	}{
		{http.MethodGet, "/api/v1/products/abc", nil, "Product not found"},
		{http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "abc", "quantity": 1}, "Product not found"},
		{http.MethodPatch, "/api/v1/cart/items/abc", map[string]any{"quantity": 2}, "Cart item not found"},
		{http.MethodDelete, "/api/v1/cart/items/abc", nil, "Cart item not found"},
		{http.MethodGet, "/api/v1/orders/abc", nil, "Order not found"},
		{http.MethodPatch, "/api/v1/orders/abc", map[string]any{"status": "cancelled"}, "Order not found"},
		{http.MethodPost, "/api/v1/wishlist/items?product_id=abc", nil, "Product not found"},
		{http.MethodDelete, "/api/v1/wishlist/items/abc", nil, "Wishlist item not found"},
		{http.MethodGet, "/api/v1/wishlist/check/abc", nil, "Product not found"},
		{http.MethodPost, "/api/v1/reviews", map[string]any{"product_id": "abc", "rating": 5}, "Product not found"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := h.do(tc.method, tc.path, tok, tc.body)
			require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
			assert.Equal(t, tc.msg, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestProducts_BySlugAndCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	on := h.product("15.00", 3, true)
	off := h.product("15.00", 3, false)

	w := h.do(http.MethodGet, "/api/v1/products/slug/"+on.Slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, on.ID, decode[product.Product](t, w).ID)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/products/slug/"+off.Slug, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/products/slug/no-such-thing", "", nil).Code)

	w = h.do(http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	for _, c := range []*product.Category{
		{Name: "Lighting", Slug: "lighting", IsActive: true},
		{Name: "Archive", Slug: "archive", IsActive: false},
		{Name: "Kitchen", Slug: "kitchen", IsActive: true},
	} {
		require.NoError(t, h.db.Products().CreateCategory(ctx, c))
	}
	assert.ErrorIs(t, h.db.Products().CreateCategory(ctx, &product.Category{Name: "Dup", Slug: "kitchen"}),
		product.ErrCategoryExists)

	w = h.do(http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]map[string]any](t, w)
	require.Len(t, cats, 2)
	assert.Equal(t, "kitchen", cats[0]["slug"])
	assert.Equal(t, "lighting", cats[1]["slug"])
	assert.NotContains(t, cats[0], "is_active")
}

func TestReviews_Create(t *testing.T) {
	h := newHarness(t)
	tok := h.register("critic@example.com").AccessToken
	p := h.product("30.00", 2, true)
	off := h.product("30.00", 2, false)

	assert.Equal(t, http.StatusUnauthorized,
		h.do(http.MethodPost, "/api/v1/reviews", "", map[string]any{"product_id": p.ID, "rating": 4}).Code)

	w := h.do(http.MethodPost, "/api/v1/reviews", tok, map[string]any{
		"product_id": p.ID, "rating": 4, "title": "Good", "comment": "Does the job",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rv := decode[review.Review](t, w)
	assert.Equal(t, 4, rv.Rating)
	assert.Equal(t, "critic@example.com", rv.UserName)

	cases := []struct {
		name string
		body map[string]any
		code int
		msg  string
	}{
		{"duplicate", map[string]any{"product_id": p.ID, "rating": 5}, http.StatusBadRequest, "Review already exists for this product"},
		{"inactive product", map[string]any{"product_id": off.ID, "rating": 5}, http.StatusNotFound, "Product not found"},
		{"rating out of range", map[string]any{"product_id": h.product("1.00", 1, true).ID, "rating": 6}, http.StatusBadRequest, "Rating must be between 1 and 5"},
		{"missing product", map[string]any{"rating": 3}, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/api/v1/reviews", tok, tc.body)
			require.Equal(t, tc.code, w.Code, w.Body.String())
			if tc.msg != "" {
				assert.Equal(t, tc.msg, decode[map[string]string](t, w)["error"])
			}
		})
	}
	assert.Equal(t, 1, h.db.Reviews().Count())
}

func TestSwaggerDocs_CoverEveryRoute(t *testing.T) {
	h := newHarness(t)

	var spec struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &spec))

	documented := 0
	for _, rt := range h.router.Routes() {
		if !strings.HasPrefix(rt.Path, "/api/v1/") {
			continue
		}
		p := strings.TrimPrefix(rt.Path, "/api/v1")
		p = paramPattern.ReplaceAllString(p, "{$1}")
		ops, ok := spec.Paths[p]
		if assert.True(t, ok, "route %s %s is not documented", rt.Method, rt.Path) {
			assert.Contains(t, ops, strings.ToLower(rt.Method), "method %s on %s is not documented", rt.Method, p)
		}
		documented++
	}

	total := 0
	for _, ops := range spec.Paths {
		total += len(ops)
	}
	assert.Equal(t, documented, total, "docs describe routes that are not registered")
}
