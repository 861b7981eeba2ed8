package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/jmoiron/sqlx"
)

// OpenClickHouse opens the analytics store used by the events sink, e.g.
// clickhouse://default:@localhost:9000/outreach?dial_timeout=5s&compress=true
func OpenClickHouse(c config.DatabaseConfig) (*sqlx.DB, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("empty ClickHouse DSN")
	}
	return openPool("clickhouse", c, 3*time.Second)
}
