package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/db"
	"github.com/MikeMC777/mia-shop/internal/httpx"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/payment"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/review"
	"github.com/MikeMC777/mia-shop/internal/user"
	"github.com/MikeMC777/mia-shop/internal/wishlist"
)

// app bundles what the handlers need; main builds it from Postgres, tests
// from memstore.
type app struct {
	users    *user.Service
	tokens   httpx.TokenParser
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	payments *payment.Service
	wishlist *wishlist.Service
	reviews  *review.Service
	log      *zap.Logger
}

const headerSkippedLines = "X-Cart-Lines-Skipped"

func registerRoutes(r *gin.Engine, a *app) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", registerHandler(a))
	v1.POST("/auth/login", loginHandler(a))
	v1.POST("/auth/refresh", refreshHandler(a))
	v1.GET("/products/:id", getProductHandler(a))
	v1.GET("/products/slug/:slug", getProductBySlugHandler(a))
	v1.GET("/categories", listCategoriesHandler(a))
	// the gateway redirects the shopper's browser here without a token
	v1.GET("/payments/callback", paymentCallbackHandler(a))

	authed := v1.Group("", httpx.RequireAuth(a.tokens))
	authed.GET("/cart", viewCartHandler(a))
	authed.POST("/cart/items", addCartItemHandler(a))
	authed.PATCH("/cart/items/:id", updateCartItemHandler(a))
	authed.DELETE("/cart/items/:id", removeCartItemHandler(a))

	authed.POST("/orders", createOrderHandler(a))
	authed.GET("/orders", listOrdersHandler(a))
	authed.GET("/orders/:id", getOrderHandler(a))
	authed.PATCH("/orders/:id", updateOrderHandler(a))
	authed.GET("/orders/number/:number", getOrderByNumberHandler(a))

	authed.POST("/payments/create", createPaymentHandler(a))

	authed.GET("/wishlist", listWishlistHandler(a))
	authed.POST("/wishlist/items", addWishlistHandler(a))
	authed.DELETE("/wishlist/items/:id", removeWishlistHandler(a))
	authed.GET("/wishlist/check/:product_id", checkWishlistHandler(a))

	authed.POST("/reviews", createReviewHandler(a))
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
}

// validID answers 404 with notFound when id is not a UUID, the same
// response an unknown id gets.
func validID(c *gin.Context, a *app, id string, notFound error) bool {
	if db.ValidID(id) {
		return true
	}
	httpx.Respond(c, a.log, notFound)
	return false
}

// ---- auth ----

// registerHandler godoc
// @Summary  Register a user and sign in
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body user.RegisterRequest true "new user"
// @Success  201 {object} auth.Pair
// @Failure  400 {object} map[string]string
// @Router   /auth/register [post]
func registerHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RegisterRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		pair, err := a.users.Register(c.Request.Context(), in)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, pair)
	}
}

// loginHandler godoc
// @Summary  Exchange credentials for a token pair
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body user.LoginRequest true "credentials"
// @Success  200 {object} auth.Pair
// @Failure  401 {object} map[string]string
// @Failure  403 {object} map[string]string
// @Router   /auth/login [post]
func loginHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.LoginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		pair, err := a.users.Login(c.Request.Context(), in)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, pair)
	}
}

// refreshHandler godoc
// @Summary  Issue a new access token from a refresh token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body user.RefreshRequest true "refresh token"
// @Success  200 {object} auth.Pair
// @Failure  401 {object} map[string]string
// @Router   /auth/refresh [post]
func refreshHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RefreshRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		pair, err := a.users.Refresh(c.Request.Context(), in.RefreshToken)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, pair)
	}
}

// ---- products ----

// getProductHandler godoc
// @Summary  Get an active product
// @Tags     products
// @Produce  json
// @Param    id path string true "product id"
// @Success  200 {object} product.Product
// @Failure  404 {object} map[string]string
// @Router   /products/{id} [get]
func getProductHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validID(c, a, id, product.ErrNotFound) {
			return
		}
		p, err := a.products.GetByID(c.Request.Context(), id)
		if err == nil && !p.IsActive {
			err = product.ErrNotFound
		}
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// getProductBySlugHandler godoc
// @Summary  Get an active product by slug
// @Tags     products
// @Produce  json
// @Param    slug path string true "product slug"
// @Success  200 {object} product.Product
// @Failure  404 {object} map[string]string
// @Router   /products/slug/{slug} [get]
func getProductBySlugHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.products.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err == nil && !p.IsActive {
			err = product.ErrNotFound
		}
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// listCategoriesHandler godoc
// @Summary  List active categories
// @Tags     products
// @Produce  json
// @Success  200 {array} product.Category
// @Router   /categories [get]
func listCategoriesHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := a.products.ListCategories(c.Request.Context())
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, cats)
	}
}

// ---- cart ----

// viewCartHandler godoc
// @Summary  Show the caller's cart with live prices
// @Tags     cart
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} cart.View
// @Router   /cart [get]
func viewCartHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := a.carts.View(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// addCartItemHandler godoc
// @Summary  Add a product to the cart
// @Description Adding a product already in the cart increases its quantity.
// @Tags     cart
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body cart.AddItemRequest true "product and quantity"
// @Success  201 {object} cart.Item
// @Failure  400 {object} map[string]string
// @Failure  404 {object} map[string]string
// @Router   /cart/items [post]
func addCartItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cart.AddItemRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		if !validID(c, a, in.ProductID, product.ErrNotFound) {
			return
		}
		it, err := a.carts.Add(c.Request.Context(), httpx.UserID(c), in.ProductID, in.Quantity)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, it)
	}
}

// updateCartItemHandler godoc
// @Summary  Set the quantity of a cart line
// @Tags     cart
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string                 true "cart item id"
// @Param    body body cart.UpdateItemRequest true "new quantity"
// @Success  200 {object} cart.Item
// @Failure  400 {object} map[string]string
// @Failure  404 {object} map[string]string
// @Router   /cart/items/{id} [patch]
func updateCartItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validID(c, a, id, cart.ErrNotFound) {
			return
		}
		var in cart.UpdateItemRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		it, err := a.carts.Update(c.Request.Context(), httpx.UserID(c), id, in.Quantity)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

// removeCartItemHandler godoc
// @Summary  Remove a cart line
// @Tags     cart
// @Security BearerAuth
// @Param    id path string true "cart item id"
// @Success  204
// @Failure  404 {object} map[string]string
// @Router   /cart/items/{id} [delete]
func removeCartItemHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validID(c, a, id, cart.ErrNotFound) {
			return
		}
		if err := a.carts.Remove(c.Request.Context(), httpx.UserID(c), id); err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ---- orders ----

// createOrderHandler godoc
// @Summary  Create an order from the caller's cart
// @Description Lines whose product is gone or inactive are skipped; the count is in the X-Cart-Lines-Skipped header.
// @Tags     orders
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body order.CreateOrderRequest true "shipping details"
// @Success  201 {object} order.Order
// @Header   201 {integer} X-Cart-Lines-Skipped "cart lines left out of the order"
// @Failure  400 {object} map[string]string
// @Router   /orders [post]
func createOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		o, skipped, err := a.orders.CreateFromCart(c.Request.Context(), httpx.UserID(c), in)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.Header(headerSkippedLines, strconv.Itoa(skipped))
		c.JSON(http.StatusCreated, o)
	}
}

// listOrdersHandler godoc
// @Summary  List the caller's orders, newest first
// @Tags     orders
// @Produce  json
// @Security BearerAuth
// @Param    page      query int false "page number" default(1)
// @Param    page_size query int false "page size"   default(20)
// @Success  200 {object} order.ListResponse
// @Router   /orders [get]
func listOrdersHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(order.DefaultPageSize)))
		res, err := a.orders.List(c.Request.Context(), httpx.UserID(c), page, size)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// getOrderHandler godoc
// @Summary  Get one of the caller's orders
// @Tags     orders
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "order id"
// @Success  200 {object} order.Order
// @Failure  404 {object} map[string]string
// @Router   /orders/{id} [get]
func getOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validID(c, a, id, order.ErrNotFound) {
			return
		}
		o, err := a.orders.Get(c.Request.Context(), httpx.UserID(c), id)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// getOrderByNumberHandler godoc
// @Summary  Get one of the caller's orders by its number
// @Tags     orders
// @Produce  json
// @Security BearerAuth
// @Param    number path string true "order number"
// @Success  200 {object} order.Order
// @Failure  404 {object} map[string]string
// @Router   /orders/number/{number} [get]
func getOrderByNumberHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := a.orders.GetByNumber(c.Request.Context(), httpx.UserID(c), c.Param("number"))
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateOrderHandler godoc
// @Summary  Change an order's status
// @Description Owners may only cancel a pending order. Superusers may set any status or payment status.
// @Tags     orders
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string                   true "order id"
// @Param    body body order.UpdateOrderRequest true "new status"
// @Success  200 {object} order.Order
// @Failure  400 {object} map[string]string
// @Failure  403 {object} map[string]string
// @Failure  404 {object} map[string]string
// @Router   /orders/{id} [patch]
func updateOrderHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validID(c, a, id, order.ErrNotFound) {
			return
		}
		var in order.UpdateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		uid := httpx.UserID(c)
		u, err := a.users.Active(c.Request.Context(), uid)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		o, err := a.orders.Update(c.Request.Context(), uid, u.IsSuperuser, id, in)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// ---- payments ----

// createPaymentHandler godoc
// @Summary  Build a signed VNPay redirect for an order
// @Tags     payments
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body payment.CreateRequest true "order to pay"
// @Success  200 {object} payment.CreateResponse
// @Failure  400 {object} map[string]string
// @Failure  404 {object} map[string]string
// @Router   /payments/create [post]
func createPaymentHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in payment.CreateRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		res, err := a.payments.CreatePaymentURL(c.Request.Context(), httpx.UserID(c), in, c.ClientIP())
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// paymentCallbackHandler godoc
// @Summary  VNPay return URL
// @Description Verifies the gateway signature and marks the order paid once. Rejections are reported in the body with status 200.
// @Tags     payments
// @Produce  json
// @Success  200 {object} payment.CallbackResponse
// @Router   /payments/callback [get]
func paymentCallbackHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		params := make(map[string]string, len(query))
		for k := range query {
			params[k] = query.Get(k)
		}
		res, err := a.payments.HandleCallback(c.Request.Context(), params, c.ClientIP())
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ---- wishlist ----

// listWishlistHandler godoc
// @Summary  List the caller's wishlist
// @Tags     wishlist
// @Produce  json
// @Security BearerAuth
// @Success  200 {array} wishlist.Item
// @Router   /wishlist [get]
func listWishlistHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := a.wishlist.List(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// addWishlistHandler godoc
// @Summary  Add a product to the wishlist
// @Tags     wishlist
// @Produce  json
// @Security BearerAuth
// @Param    product_id query string true "product id"
// @Success  201 {object} wishlist.Item
// @Failure  400 {object} map[string]string
// @Failure  404 {object} map[string]string
// @Router   /wishlist/items [post]
func addWishlistHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Query("product_id")
		if productID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
			return
		}
		if !validID(c, a, productID, product.ErrNotFound) {
			return
		}
		it, err := a.wishlist.Add(c.Request.Context(), httpx.UserID(c), productID)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, it)
	}
}

// removeWishlistHandler godoc
// @Summary  Remove a wishlist entry
// @Tags     wishlist
// @Security BearerAuth
// @Param    id path string true "wishlist item id"
// @Success  204
// @Failure  404 {object} map[string]string
// @Router   /wishlist/items/{id} [delete]
func removeWishlistHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validID(c, a, id, wishlist.ErrNotFound) {
			return
		}
		if err := a.wishlist.Remove(c.Request.Context(), httpx.UserID(c), id); err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// checkWishlistHandler godoc
// @Summary  Report whether a product is on the caller's wishlist
// @Tags     wishlist
// @Produce  json
// @Security BearerAuth
// @Param    product_id path string true "product id"
// @Success  200 {object} map[string]bool
// @Failure  404 {object} map[string]string
// @Router   /wishlist/check/{product_id} [get]
func checkWishlistHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("product_id")
		if !validID(c, a, productID, product.ErrNotFound) {
			return
		}
		ok, err := a.wishlist.Contains(c.Request.Context(), httpx.UserID(c), productID)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"in_wishlist": ok})
	}
}

// ---- reviews ----

// createReviewHandler godoc
// @Summary  Review a product
// @Description One review per user and product. The product must be active.
// @Tags     reviews
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body review.CreateRequest true "rating 1 to 5, optional title and comment"
// @Success  201 {object} review.Review
// @Failure  400 {object} map[string]string
// @Failure  404 {object} map[string]string
// @Router   /reviews [post]
func createReviewHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in review.CreateRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		rv, err := a.reviews.Create(c.Request.Context(), httpx.UserID(c), in)
		if err != nil {
			httpx.Respond(c, a.log, err)
			return
		}
		c.JSON(http.StatusCreated, rv)
	}
}
