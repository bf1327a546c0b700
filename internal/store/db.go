package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var ErrMissingDatabaseURL = errors.New("database url is empty")

const applicationName = "mojocode-api"

// Open parses databaseURL with pgx, opens a database/sql pool over it and
// pings once. Parse errors never echo the URL since it carries the password.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrMissingDatabaseURL
	}
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.New("parse database url: invalid connection string")
	}
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := connConfig.RuntimeParams["application_name"]; !ok {
		connConfig.RuntimeParams["application_name"] = applicationName
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(15)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s:%d: %w", connConfig.Host, connConfig.Port, err)
	}
	return db, nil
}
