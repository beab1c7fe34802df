package main

import (
	"io"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/render"
	"github.com/Feresey/relgraph/schema"
)

type inferCommand struct {
	schemaCommand

	outputPath *cli.StringFlag
}

func NewInferCommand(f flags) *inferCommand {
	return &inferCommand{
		schemaCommand: newSchemaCommand(f),
		outputPath:    outputFlag("write report to file"),
	}
}

func (c *inferCommand) Command() *cli.Command {
	return c.command("infer", "report columns that look like undeclared foreign keys",
		c.run, c.outputPath)
}

func (c *inferCommand) run(ctx *cli.Context, s *schema.Schema) error {
	links := c.newAnalyzer().inferLinks(s)
	if err := dumpToFile(c.outputPath.Get(ctx), func(w io.Writer) error {
		return render.Anomalies(w, links)
	}); err != nil {
		return xerrors.Errorf("write anomalies: %w", err)
	}
	return nil
}
