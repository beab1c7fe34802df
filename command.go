package main

import (
	"errors"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

// schemaCommand общая часть команд, которые работают с загруженной схемой.
type schemaCommand struct {
	f      flags
	sflags SchemaLoaderFlags

	BaseCommand
	loader SchemaLoader
}

func newSchemaCommand(f flags) schemaCommand {
	return schemaCommand{
		f:      f,
		sflags: NewSchemaLoaderFlags(),
	}
}

func (c *schemaCommand) command(
	name, usage string,
	action func(ctx *cli.Context, s *schema.Schema) error,
	extra ...cli.Flag,
) *cli.Command {
	return &cli.Command{
		Name:   name,
		Usage:  usage,
		Flags:  append(append(c.f.Set(), c.sflags.dumpPath), extra...),
		Before: c.init,
		Action: func(ctx *cli.Context) error {
			s, err := c.loader.GetSchema(ctx, c.sflags)
			if err != nil {
				return err
			}
			if len(s.Tables) == 0 {
				c.log.Info("nothing to do, schema has no tables")
				return nil
			}
			if err := c.newAnalyzer().applyPolicies(s); err != nil {
				return err
			}
			return action(ctx, s)
		},
		After: c.cleanup,
	}
}

func (c *schemaCommand) init(ctx *cli.Context) error {
	base, err := NewBase(ctx, c.f)
	if err != nil {
		return cli.Exit(err, 2)
	}
	c.BaseCommand = base

	loader, err := NewSchemaLoader(ctx, base, c.f, c.sflags)
	if err != nil {
		return err
	}
	c.loader = loader
	return nil
}

func (c *schemaCommand) cleanup(ctx *cli.Context) error {
	return c.loader.Cleanup(ctx)
}

func (c *schemaCommand) newAnalyzer() analyzer {
	return analyzer{log: c.log, cnf: c.cnf}
}

func outputFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:      "output",
		Aliases:   []string{"o"},
		Value:     stdoutFileName,
		Usage:     usage,
		TakesFile: true,
	}
}

const stdoutFileName = "-"

// dumpToFile пишет в файл или в stdout, если путь "-".
func dumpToFile(fileName string, f func(w io.Writer) error) (err error) {
	if fileName == stdoutFileName || fileName == "" {
		return f(os.Stdout)
	}
	file, err := os.Create(fileName)
	if err != nil {
		return xerrors.Errorf("create output file: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return f(file)
}

func createDirIfNotExist(log *zap.Logger, path string) error {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		log.Debug("create output dir", zap.String("path", path))
		return os.MkdirAll(path, 0o755) //nolint:gomnd // dir mode
	}
	if err != nil {
		return err
	}
	if !fileInfo.IsDir() {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}
	return nil
}
