package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/linemk/gomarket/internal/config"
)

// buildDSN собирает строку подключения; extra — дополнительные
// параметры запроса (например, имя таблицы версий миграций)
func buildDSN(dbCfg config.DatabaseConfig, extra string) string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		dbCfg.User, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.Name,
	)
	if extra != "" {
		dsn += "&" + extra
	}
	return dsn
}

func main() {
	var migrationsPathFlag string
	var migrationsTable string
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "migrations version table")
	flag.Parse()

	// пароль БД приходит из окружения через env-required поле конфига
	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	log.Printf("applying migrations from %s to %s:%d/%s", migrationsPath, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	m, err := migrate.New(
		"file://"+migrationsPath,
		buildDSN(cfg.Database, "x-migrations-table="+migrationsTable),
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
		} else {
			log.Fatalf("migration failed: %v", err)
		}
	} else {
		log.Println("Migrations applied successfully")
	}

	db, err := sql.Open("postgres", buildDSN(cfg.Database, ""))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		log.Fatalf("failed to query tables: %v", err)
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			log.Fatalf("failed to scan row: %v", err)
		}
		fmt.Println(" -", tableName)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("error reading rows: %v", err)
	}
}
