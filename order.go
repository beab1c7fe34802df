package main

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/order"
	"github.com/Feresey/relgraph/render"
	"github.com/Feresey/relgraph/schema"
)

type orderCommand struct {
	schemaCommand

	outputPath *cli.StringFlag
	deletion   *cli.BoolFlag
}

func NewOrderCommand(f flags) *orderCommand {
	return &orderCommand{
		schemaCommand: newSchemaCommand(f),
		outputPath:    outputFlag("write order to file"),
		deletion: &cli.BoolFlag{
			Name:  "deletion",
			Usage: "print deletion order instead of insertion order",
		},
	}
}

func (c *orderCommand) Command() *cli.Command {
	return c.command("order", "print tables in insertion order, parents first",
		c.run, c.outputPath, c.deletion)
}

func (c *orderCommand) run(ctx *cli.Context, s *schema.Schema) error {
	if err := c.newAnalyzer().addImplied(s); err != nil {
		return err
	}

	res, err := order.NewOrderer(c.log).Order(s)
	if err != nil {
		return xerrors.Errorf("determine tables order: %w", err)
	}
	if res.Empty() {
		c.log.Info("nothing to do, no tables to order")
		return nil
	}

	c.log.Info("tables ordered",
		zap.Int("tables", len(res.Insertion)),
		zap.Int("remote", len(res.Remote)),
		zap.Int("sacrificed", len(res.Sacrificed)),
		zap.Int("dropped_implied", len(res.Dropped)),
	)
	if len(res.Sacrificed) != 0 {
		c.log.Warn("some constraints were ignored to break cycles")
		if err := render.Sacrificed(os.Stderr, res.Sacrificed); err != nil {
			return err
		}
	}

	tables := res.Insertion
	if c.deletion.Get(ctx) {
		tables = res.Deletion()
	}
	return dumpToFile(c.outputPath.Get(ctx), func(w io.Writer) error {
		return render.Order(w, tables)
	})
}
