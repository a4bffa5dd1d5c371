package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/linemk/gomarket/internal/app"
	"github.com/linemk/gomarket/internal/app/handlers"
	"github.com/linemk/gomarket/internal/config"
	"github.com/linemk/gomarket/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/gomarket/internal/lib/logger"
	"github.com/linemk/gomarket/internal/lib/logger/handlers/urllog"
	"github.com/linemk/gomarket/internal/service"
	"github.com/linemk/gomarket/internal/storage"
	"github.com/linemk/gomarket/internal/ws"
	"github.com/pkg/errors"
)

func main() {
	// .env опционален, в проде переменные приходят из окружения
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// подробности внутренних ошибок в ответах только вне production
	handlers.Debug = cfg.Env != logger.EnvProd

	// загружаем объект приложения: конфиг, БД, кэш и почтовый воркер
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	// хаб live-уведомлений, общий для всех сервисов
	hub := ws.NewHub(application.Logger)

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	catalogService := service.NewCatalogService(application.Logger, productRepo, application.Cache, hub)
	cartService := service.NewCartService(application.Logger, cartRepo, productRepo, hub)
	orderService := service.NewOrderService(application.Logger, application.DB, cartRepo, productRepo,
		orderRepo, userRepo, hub, application.Mailer, application.Cache)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))

	// публичный каталог
	router.Get("/api/products", handlers.ListProductsHandler(application.Logger, catalogService))
	router.Get("/api/products/{id}", handlers.GetProductHandler(application.Logger, catalogService))

	// live-уведомления, токен проверяется при рукопожатии
	router.Get("/ws", ws.ServeWS(application.Logger, hub))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)

		// корзина
		r.Get("/api/cart", handlers.GetCartHandler(application.Logger, cartService))
		r.Delete("/api/cart", handlers.ClearCartHandler(application.Logger, cartService))
		r.Get("/api/cart/count", handlers.CartCountHandler(application.Logger, cartService))
		r.Post("/api/cart/items", handlers.AddCartItemHandler(application.Logger, cartService))
		r.Put("/api/cart/items/{id}", handlers.UpdateCartItemHandler(application.Logger, cartService))
		r.Delete("/api/cart/items/{id}", handlers.RemoveCartItemHandler(application.Logger, cartService))

		// заказы
		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(application.Logger, orderService))
		r.Put("/api/orders/{id}/cancel", handlers.CancelOrderHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}/history", handlers.OrderHistoryHandler(application.Logger, orderService))

		// административные операции
		r.Group(func(ar chi.Router) {
			ar.Use(jwtmiddleware.RequireAdmin)
			ar.Post("/api/products", handlers.CreateProductHandler(application.Logger, catalogService))
			ar.Put("/api/products/{id}", handlers.UpdateProductHandler(application.Logger, catalogService))
			ar.Put("/api/products/{id}/stock", handlers.AdjustStockHandler(application.Logger, catalogService))
			ar.Delete("/api/products/{id}", handlers.DeactivateProductHandler(application.Logger, catalogService))
			ar.Put("/api/orders/{id}/status", handlers.UpdateOrderStatusHandler(application.Logger, orderService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
