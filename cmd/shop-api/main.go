// Command shop-api serves the storefront REST API together with a gRPC
// health endpoint.
//
// @title        Mia Shop API
// @version      1.0
// @description  Cart, orders, VNPay payments, wishlist, catalog lookups and reviews.
// @BasePath     /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

//go:generate swag init --parseInternal --dir ./,../../internal --generalInfo main.go --output ../../docs --outputTypes go

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/MikeMC777/mia-shop/docs"
	"github.com/MikeMC777/mia-shop/internal/auth"
	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/config"
	"github.com/MikeMC777/mia-shop/internal/db"
	"github.com/MikeMC777/mia-shop/internal/healthsrv"
	"github.com/MikeMC777/mia-shop/internal/httpx"
	"github.com/MikeMC777/mia-shop/internal/logx"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/payment"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/review"
	"github.com/MikeMC777/mia-shop/internal/user"
	"github.com/MikeMC777/mia-shop/internal/vnpay"
	"github.com/MikeMC777/mia-shop/internal/wishlist"
)

const (
	shutdownTimeout = 15 * time.Second
	// clients quiet for this long lose their rate limiter state
	limiterIdle = 10 * time.Minute
)

// redisPinger adapts a redis client to healthsrv.Pinger.
type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

func main() {
	cfg := config.Load()

	log, err := logx.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("config loaded", cfg.Fields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(pool); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		log.Info("migrations applied")
	}

	deps := []healthsrv.Pinger{pool}
	var cache cart.Cache = cart.NoopCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			// the cart still works from Postgres; only caching is lost
			log.Warn("redis unavailable, cart cache disabled", zap.Error(err))
		} else {
			cache = cart.NewRedisCache(rdb)
			deps = append(deps, redisPinger{c: rdb})
		}
		cancel()
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatal("token manager", zap.Error(err))
	}
	gateway, err := vnpay.NewClient(cfg.VNPay)
	if err != nil {
		log.Fatal("vnpay client", zap.Error(err))
	}

	products := product.NewPGRepo(pool)
	carts := cart.NewService(cart.NewPGRepo(pool), products, cache, log)
	store := order.NewPGStore(pool)
	users := user.NewPGRepo(pool)
	a := &app{
		users:    user.NewService(users, tokens, log),
		tokens:   tokens,
		products: products,
		carts:    carts,
		orders:   order.NewService(store, carts, log),
		payments: payment.NewService(store, gateway, log),
		wishlist: wishlist.NewService(wishlist.NewPGRepo(pool), products),
		reviews:  review.NewService(review.NewPGRepo(pool), products, users, log),
		log:      log,
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.AccessLog(log))
	limiter := httpx.NewRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute, limiterIdle)
	r.Use(limiter.Middleware())
	registerRoutes(r, a)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := healthsrv.New(log, deps...)
	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		log.Fatal("grpc listen", zap.Error(err))
	}
	go health.Watch(ctx, 10*time.Second)
	go func() {
		log.Info("grpc health listening", zap.String("addr", cfg.GRPCHealthAddr))
		if err := health.Serve(lis); err != nil {
			log.Error("grpc health server", zap.Error(err))
		}
	}()

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	health.Stop()
	log.Info("server exited")
}
