// Package sqlserver opens the read-only connection to the transactional rental database.
package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/wonny/fleetcast/pkg/config"
)

// ErrNotConfigured SOURCE_DB_URL 미설정
var ErrNotConfigured = errors.New("source database url not configured")

// Open returns a pinged *sql.DB for the rental source
// ⭐ SSOT: SQL Server 연결은 여기서만 생성
func Open(ctx context.Context, cfg config.SourceDBConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	db, err := sql.Open("sqlserver", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open source connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	return db, nil
}
