package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/parse"
	"github.com/Feresey/relgraph/parse/mysqlmeta"
	"github.com/Feresey/relgraph/parse/queries"
	"github.com/Feresey/relgraph/schema"
)

type SchemaLoaderFlags struct {
	dumpPath *cli.StringFlag
}

func NewSchemaLoaderFlags() SchemaLoaderFlags {
	return SchemaLoaderFlags{
		dumpPath: &cli.StringFlag{
			Name:      "input",
			Aliases:   []string{"i"},
			Usage:     "load schema from json dump instead of database, - for stdin",
			TakesFile: true,
			Action: func(ctx *cli.Context, fpath string) error {
				if fpath == stdinFileName {
					return nil
				}
				fileInfo, err := os.Stat(fpath)
				if os.IsNotExist(err) {
					return xerrors.Errorf("dump file %q does not exist", fpath)
				}
				if err != nil {
					return xerrors.Errorf("stat dump file: %w", err)
				}
				if fileInfo.IsDir() {
					return xerrors.Errorf("%q is a directory, expected file", fpath)
				}
				return nil
			},
		},
	}
}

// SchemaLoader загружает схему из дампа или из базы, смотря что указано.
type SchemaLoader struct {
	BaseCommand

	pool     *pgxpool.Pool
	mysql    *sql.DB
	database string
}

func NewSchemaLoader(
	ctx *cli.Context,
	base BaseCommand,
	flags flags,
	sflags SchemaLoaderFlags,
) (SchemaLoader, error) {
	s := SchemaLoader{
		BaseCommand: base,
	}

	err := s.Init(ctx, flags, sflags)
	return s, err
}

const stdinFileName = "-"

func (p *SchemaLoader) Init(ctx *cli.Context, flags flags, sflags SchemaLoaderFlags) error {
	if sflags.dumpPath.Get(ctx) != "" {
		return nil
	}
	switch p.cnf.Driver {
	case DriverMySQL:
		conn, database, err := p.connectMySQL(ctx)
		if err != nil {
			return cli.Exit(err, 3)
		}
		p.mysql, p.database = conn, database
	default:
		pool, err := p.connectPostgres(ctx, flags.debug.Get(ctx))
		if err != nil {
			return cli.Exit(err, 3)
		}
		p.pool = pool
	}
	return nil
}

func (p *SchemaLoader) Cleanup(*cli.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}
	if p.mysql != nil {
		if err := p.mysql.Close(); err != nil {
			return xerrors.Errorf("close mysql conn: %w", err)
		}
	}
	return nil
}

func (p *SchemaLoader) GetSchema(
	ctx *cli.Context,
	sflags SchemaLoaderFlags,
) (s *schema.Schema, err error) {
	if filename := sflags.dumpPath.Get(ctx); filename != "" {
		return p.getSchemaFromFile(filename)
	}
	p.log.Debug("schema dump path is not specified")
	return p.parseDB(ctx)
}

func (p *SchemaLoader) getSchemaFromFile(filename string) (s *schema.Schema, err error) {
	p.log.Debug("load schema from file", zap.String("filename", filename))
	defer func() {
		p.log.Info("schema loaded", zap.Error(err), zap.String("filename", filename))
	}()
	var in io.Reader
	if filename == stdinFileName {
		in = os.Stdin
	} else {
		fileData, err := os.ReadFile(filename)
		if err != nil {
			return nil, xerrors.Errorf("read schema dump file: %w", err)
		}
		in = bytes.NewReader(fileData)
	}
	s = new(schema.Schema)
	if err := json.NewDecoder(in).Decode(s); err != nil {
		return nil, xerrors.Errorf("decode schema: %w", err)
	}
	return s, nil
}

func (p *SchemaLoader) parseDB(ctx *cli.Context) (s *schema.Schema, err error) {
	p.log.Debug("parse schema")
	defer func() {
		p.log.Info("schema parsed", zap.Error(err))
	}()

	switch {
	case p.mysql != nil:
		s, err = mysqlmeta.NewLoader(p.mysql, p.log).LoadSchema(ctx.Context, p.database)
	case p.pool != nil:
		s, err = parse.NewParser(p.pool, p.log).LoadSchema(ctx.Context, p.cnf.Parser)
	default:
		return nil, xerrors.New("database connection is not initialized")
	}
	if err != nil {
		var qErr queries.Error
		if xerrors.As(err, &qErr) {
			p.log.Error(qErr.Pretty())
		}
		return nil, xerrors.Errorf("parse schema: %w", err)
	}

	return s, nil
}
