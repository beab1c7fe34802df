package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/db"
)

func newLogger(debug bool) (*zap.Logger, error) {
	lc := zap.NewDevelopmentConfig()
	lc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	lc.DisableStacktrace = true
	if debug {
		lc.Level.SetLevel(zap.DebugLevel)
	} else {
		lc.Level.SetLevel(zap.InfoLevel)
	}
	return lc.Build()
}

type flags struct {
	configPath *cli.StringFlag
	debug      *cli.BoolFlag
}

func (f *flags) Set() []cli.Flag {
	return []cli.Flag{
		f.configPath,
		f.debug,
	}
}

func main() {
	f := flags{
		configPath: &cli.StringFlag{
			Name:      "config",
			Value:     "relgraph.yml",
			Usage:     "config file path",
			TakesFile: true,
			Aliases:   []string{"c"},
		},
		debug: &cli.BoolFlag{
			Name:   "debug",
			Value:  false,
			Usage:  "show debug information",
			Hidden: true,
		},
	}

	app := &cli.App{
		Name:        "relgraph",
		Usage:       "table relationships analyzer",
		Description: "infers undeclared relationships, orders tables for loading and draws table neighborhoods",
		Flags:       f.Set(),
		Commands: []*cli.Command{
			NewOrderCommand(f).Command(),
			NewInferCommand(f).Command(),
			NewDiagramCommand(f).Command(),
			NewDumpCommand(f).Command(),
		},
		ExitErrHandler: func(ctx *cli.Context, err error) {
			if err == nil {
				return
			}
			if f.debug.Get(ctx) {
				fmt.Fprintf(os.Stderr, "%+v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			code := 1
			var exitErr cli.ExitCoder
			if xerrors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			os.Exit(code)
		},
		EnableBashCompletion: true,
	}
	if err := app.Run(os.Args); err != nil {
		println(err.Error())
		os.Exit(2)
	}
}

type BaseCommand struct {
	log *zap.Logger
	cnf *AppConfig
}

func NewBase(ctx *cli.Context, f flags) (BaseCommand, error) {
	var empty BaseCommand
	log, err := newLogger(f.debug.Get(ctx))
	if err != nil {
		return empty, xerrors.Errorf("create logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	cnf, err := ReadConfig(f.configPath.Get(ctx))
	if err != nil {
		return empty, xerrors.Errorf("get config: %w", err)
	}
	log.Debug("config readed", zap.String("driver", string(cnf.Driver)))

	return BaseCommand{
		log: log,
		cnf: cnf,
	}, nil
}

func (b *BaseCommand) connectPostgres(ctx *cli.Context, debug bool) (*pgxpool.Pool, error) {
	if debug {
		b.cnf.DB.SetDebug(true)
	}
	pool, err := db.NewPool(ctx.Context, b.log, b.cnf.DB)
	if err != nil {
		return nil, xerrors.Errorf("create database connection: %w", err)
	}
	b.log.Debug("connected to database")

	return pool, nil
}

func (b *BaseCommand) connectMySQL(ctx *cli.Context) (*sql.DB, string, error) {
	conn, database, err := db.OpenMySQL(ctx.Context, b.log, b.cnf.DB)
	if err != nil {
		return nil, "", xerrors.Errorf("create database connection: %w", err)
	}
	return conn, database, nil
}
