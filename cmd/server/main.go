package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "checkout-service/internal/controllers/http"
	"checkout-service/internal/infra"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/rabbitmq"
	mysqlrepo "checkout-service/internal/repository/mysql"
	redisrepo "checkout-service/internal/repository/redis"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	db, err := mmysql.NewMySQLFromEnv()
	if err != nil {
		log.Fatalf("db: connect: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         os.Getenv("REDIS_HOST") + ":6379",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	publisher, err := rabbitmq.NewPublisher(os.Getenv("RABBITMQ_URL"), "checkout.exchange")
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	itemRepo := mysqlrepo.NewItemRepository(db)
	orderRepo := mysqlrepo.NewOrderRepository(db)
	cartRepo := redisrepo.NewCartRepository(redisClient)

	userClient := infra.NewUserClient(os.Getenv("USER_SERVICE_URL"), 2*time.Second)

	cartService := services.NewCartService(cartRepo, itemRepo)
	cartService.SetRedisClient(redisClient)

	orderService := services.NewOrderService(
		orderRepo, itemRepo, cartRepo, userClient, publisher, services.NewOTPCodec(),
	)

	handler := handlers.NewHandler(orderService, cartService)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r}

	ttl := 24 * time.Hour
	if raw := os.Getenv("PENDING_ORDER_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid PENDING_ORDER_TTL %q: %v", raw, err)
		}
		ttl = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting checkout service on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return orderService.RunExpirySweeper(ctx, time.Minute, ttl)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("server run: %v", err)
	}
}
