package main

import (
	"io"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/neighborhood"
	"github.com/Feresey/relgraph/render"
	"github.com/Feresey/relgraph/schema"
)

type diagramCommand struct {
	schemaCommand

	outputPath *cli.StringFlag
	twoDegrees *cli.BoolFlag
}

func NewDiagramCommand(f flags) *diagramCommand {
	return &diagramCommand{
		schemaCommand: newSchemaCommand(f),
		outputPath: &cli.StringFlag{
			Name:      "output",
			Aliases:   []string{"o"},
			Value:     "diagrams",
			Usage:     "directory for .dot files",
			TakesFile: true,
		},
		twoDegrees: &cli.BoolFlag{
			Name:  "two-degrees",
			Usage: "also draw relatives of relatives, overrides config",
		},
	}
}

func (c *diagramCommand) Command() *cli.Command {
	return c.command("diagram", "write graphviz sources of every table neighborhood",
		c.run, c.outputPath, c.twoDegrees)
}

func (c *diagramCommand) run(ctx *cli.Context, s *schema.Schema) error {
	if err := c.newAnalyzer().addImplied(s); err != nil {
		return err
	}

	opts := c.cnf.Diagram
	if ctx.IsSet(c.twoDegrees.Name) {
		opts.TwoDegrees = c.twoDegrees.Get(ctx)
	}
	graphs, err := neighborhood.NewBuilder(c.log, opts).BuildAll(s)
	if err != nil {
		return xerrors.Errorf("build neighborhoods: %w", err)
	}

	dir := c.outputPath.Get(ctx)
	if err := createDirIfNotExist(c.log, dir); err != nil {
		return xerrors.Errorf("create output dir: %w", err)
	}
	for _, g := range graphs {
		path := filepath.Join(dir, g.Focal.String()+".dot")
		if err := dumpToFile(path, func(w io.Writer) error {
			return render.Neighborhood(w, g)
		}); err != nil {
			return xerrors.Errorf("write diagram of %q: %w", g.Focal, err)
		}
	}
	c.log.Info("diagrams written", zap.Int("n", len(graphs)), zap.String("dir", dir))
	return nil
}
