package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options describes the MySQL connection and its pool.
type Options struct {
	User string
	Pass string
	Host string
	Port string
	Name string

	MaxOpenConns    int           // 0 = 25
	ConnMaxLifetime time.Duration // 0 = 30m
}

// DSN renders the driver connection string.  Times are parsed into
// time.Time and kept in UTC so due dates compare consistently.
func (o Options) DSN() string {
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, o.Port)
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and verifies the connection within five seconds.
func Open(ctx context.Context, o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	maxOpen := o.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	lifetime := o.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
