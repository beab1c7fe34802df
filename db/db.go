// Package db открывает соединения с анализируемой базой.
package db

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

type Config struct {
	Conn string
	// Размер пула соединений. Ноль - значение pgxpool по умолчанию.
	MaxConns int32
	debug    bool
}

func (c *Config) SetDebug(debug bool) { c.debug = debug }

// NewPool открывает пул соединений с PostgreSQL. В режиме отладки все запросы пишутся в лог.
func NewPool(
	ctx context.Context,
	logger *zap.Logger,
	cfg Config,
) (*pgxpool.Pool, error) {
	cnf, err := pgxpool.ParseConfig(cfg.Conn)
	if err != nil {
		return nil, xerrors.Errorf("parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		cnf.MaxConns = cfg.MaxConns
	}

	if cfg.debug {
		cnf.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(queryMessageLog(logger.Named("sql"))),
			LogLevel: tracelog.LogLevelInfo,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cnf)
	if err != nil {
		return nil, xerrors.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, xerrors.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// OpenMySQL открывает соединение с MySQL и возвращает имя базы из строки подключения.
func OpenMySQL(ctx context.Context, logger *zap.Logger, cfg Config) (*sql.DB, string, error) {
	mcfg, err := mysql.ParseDSN(cfg.Conn)
	if err != nil {
		return nil, "", xerrors.Errorf("parse dsn: %w", err)
	}
	if mcfg.DBName == "" {
		return nil, "", xerrors.New("database name is missing in dsn")
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, "", xerrors.Errorf("create connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", xerrors.Errorf("connect to database: %w", err)
	}
	logger.Debug("connected to mysql",
		zap.String("addr", mcfg.Addr),
		zap.String("database", mcfg.DBName))
	return db, mcfg.DBName, nil
}

func queryMessageLog(log *zap.Logger) func(
	ctx context.Context,
	level tracelog.LogLevel,
	msg string,
	data map[string]any,
) {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		if msg == "Prepare" {
			return
		}
		var rawSQL *string
		fields := make([]zapcore.Field, 0, len(data))
		for k, v := range data {
			f := zap.Any(k, v)
			if f.Key == "sql" && f.Type == zapcore.StringType {
				rawSQL = &f.String
				continue
			}
			fields = append(fields, f)
		}

		var lvl zapcore.Level
		switch level {
		default:
			fallthrough
		case tracelog.LogLevelNone, tracelog.LogLevelTrace, tracelog.LogLevelDebug:
			lvl = zapcore.DebugLevel
		case tracelog.LogLevelInfo:
			lvl = zapcore.InfoLevel
		case tracelog.LogLevelWarn:
			lvl = zapcore.WarnLevel
		case tracelog.LogLevelError:
			lvl = zapcore.ErrorLevel
		}
		if rawSQL != nil {
			msg = msg + "\n" + *rawSQL
		}
		if ce := log.Check(lvl, msg); ce != nil {
			ce.Write(fields...)
		}
	}
}
