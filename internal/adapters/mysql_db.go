package adapters

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

//go:embed sqlschema/schema.sql
var registrySchema string

const maxWaitForDB = time.Minute

// MySQLConfig holds the connection settings of the SQL backend.
type MySQLConfig struct {
	Addr     string
	Port     uint
	User     string
	Password string
	Database string
}

func NewMySQLDB(cfg MySQLConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("mysql address is empty")
	}
	mc := mysql.NewConfig()
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.ParseTime = true
	dc, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid mysql configuration").
			WithCause(err)
	}
	db := sql.OpenDB(dc)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// InitSchema waits until the database answers and creates the registry
// tables when they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB, delay time.Duration) error {
	if err := waitForDB(ctx, db, delay); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("mysql is not reachable").
			WithCause(err)
	}
	stmts, err := splitStatements(registrySchema)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read schema").
			WithCause(err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to begin schema transaction").
			WithCause(err)
	}
	defer tx.Rollback()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to apply schema").
				WithCause(err)
		}
	}
	return tx.Commit()
}

func splitStatements(schema string) ([]string, error) {
	reader := bufio.NewReader(strings.NewReader(schema))
	var stmts []string
	for {
		stmt, err := reader.ReadString(';')
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// waitForDB pings with exponential backoff, starting at delay, until the
// server answers, ctx ends or maxWaitForDB has passed.
func waitForDB(ctx context.Context, db *sql.DB, delay time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = delay
	policy.MaxInterval = 4 * delay
	policy.MaxElapsedTime = maxWaitForDB
	policy.Reset()
	return backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		log.Ctx(ctx).Warn().Err(err).Dur("retry_in", next).Msg("waiting for mysql")
	})
}
