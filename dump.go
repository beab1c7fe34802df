package main

import (
	"encoding/json"
	"io"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

type dumpCommand struct {
	schemaCommand

	outputPath *cli.StringFlag
}

func NewDumpCommand(f flags) *dumpCommand {
	return &dumpCommand{
		schemaCommand: newSchemaCommand(f),
		outputPath:    outputFlag("write json to file"),
	}
}

func (c *dumpCommand) Command() *cli.Command {
	return c.command("dump", "dump schema to json, the dump can be loaded back with -i",
		c.run, c.outputPath)
}

func (c *dumpCommand) run(ctx *cli.Context, s *schema.Schema) error {
	if err := c.newAnalyzer().addImplied(s); err != nil {
		return err
	}
	if err := dumpToFile(c.outputPath.Get(ctx), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}); err != nil {
		return xerrors.Errorf("dump schema: %w", err)
	}
	return nil
}
