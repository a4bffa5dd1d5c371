package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	"github.com/linemk/gomarket/internal/cache"
	"github.com/linemk/gomarket/internal/config"
	"github.com/linemk/gomarket/internal/mail"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Cache  *cache.Cache
	Mailer *mail.Mailer
}

// NewApp создаёт новый экземпляр App: подключение к БД, кэш и почтовый воркер
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is not set")
	}
	// реализуем подключение к БД через DSN
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Database.User,
		dbPassword,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cch, err := cache.New(log, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	mailer := mail.New(log, mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
		Cache:  cch,
		Mailer: mailer,
	}

	return app, nil
}

// Close освобождает ресурсы приложения
func (a *App) Close() {
	a.Mailer.Close()
	if err := a.Cache.Close(); err != nil {
		a.Logger.Warn("failed to close redis", slog.Any("error", err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close database", slog.Any("error", err))
	}
}
