package main

import (
	"os"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/Feresey/relgraph/db"
	"github.com/Feresey/relgraph/infer"
	"github.com/Feresey/relgraph/neighborhood"
	"github.com/Feresey/relgraph/parse"
	"github.com/Feresey/relgraph/policy"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

const defaultWorkers = 4

type FileConfig struct {
	Driver   Driver   `yaml:"driver"`
	DBConn   string   `yaml:"dbconn"`
	Schema   string   `yaml:"schema"`
	Patterns []string `yaml:"parser"`
	Workers  int      `yaml:"workers"`

	Infer struct {
		Enabled     bool     `yaml:"enabled"`
		Rails       bool     `yaml:"rails"`
		SpecialKeys []string `yaml:"special_keys"`
	} `yaml:"infer"`

	Policy struct {
		ExcludeImpliedParents  []string `yaml:"exclude_implied_parents"`
		ExcludeImpliedChildren []string `yaml:"exclude_implied_children"`
		ExcludeColumns         []string `yaml:"exclude_columns"`
		Lua                    string   `yaml:"lua"`
	} `yaml:"policy"`

	Diagram struct {
		Implied    bool `yaml:"implied"`
		TwoDegrees bool `yaml:"two_degrees"`
	} `yaml:"diagram"`
}

type InferConfig struct {
	Enabled     bool
	Rails       bool
	SpecialKeys []string
}

type PolicyConfig struct {
	policy.Config
	// Путь к скрипту политики, может быть пустым
	LuaPath string
}

type AppConfig struct {
	Driver  Driver
	DB      db.Config
	Parser  parse.Config
	Infer   InferConfig
	Policy  PolicyConfig
	Diagram neighborhood.Options
}

func (fc FileConfig) Build() (*AppConfig, error) {
	driver := fc.Driver
	switch driver {
	case "":
		driver = DriverPostgres
	case DriverPostgres, DriverMySQL:
	default:
		return nil, xerrors.Errorf("unsupported driver: %q", fc.Driver)
	}

	patterns, err := fc.parsePatterns(fc.Patterns)
	if err != nil {
		return nil, xerrors.Errorf("parse patterns failed: %w", err)
	}

	schemaName := fc.Schema
	if schemaName == "" && driver == DriverPostgres {
		schemaName = "public"
	}
	if len(patterns) == 0 && schemaName != "" {
		patterns = []parse.Pattern{{Schema: schemaName}}
	}

	workers := fc.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	specialKeys := fc.Infer.SpecialKeys
	if specialKeys == nil {
		specialKeys = []string{infer.DefaultSpecialKey}
	}

	return &AppConfig{
		Driver: driver,
		DB: db.Config{
			Conn:     fc.DBConn,
			MaxConns: int32(workers),
		},
		Parser: parse.Config{
			Schema:   schemaName,
			Patterns: patterns,
			Workers:  workers,
		},
		Infer: InferConfig{
			Enabled:     fc.Infer.Enabled,
			Rails:       fc.Infer.Rails,
			SpecialKeys: specialKeys,
		},
		Policy: PolicyConfig{
			Config: policy.Config{
				ExcludeImpliedParents:  fc.Policy.ExcludeImpliedParents,
				ExcludeImpliedChildren: fc.Policy.ExcludeImpliedChildren,
				ExcludeColumns:         fc.Policy.ExcludeColumns,
			},
			LuaPath: fc.Policy.Lua,
		},
		Diagram: neighborhood.Options{
			IncludeImplied: fc.Diagram.Implied,
			TwoDegrees:     fc.Diagram.TwoDegrees,
		},
	}, nil
}

func ReadConfig(confPath string) (*AppConfig, error) {
	var fc FileConfig
	file, err := os.ReadFile(confPath)
	if err != nil {
		return nil, xerrors.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(file, &fc); err != nil {
		return nil, xerrors.Errorf("parse config: %w", err)
	}

	c, err := fc.Build()
	if err != nil {
		return nil, xerrors.Errorf("process config data: %w", err)
	}
	return c, nil
}

// parsePatterns разбирает шаблоны вида schema или schema.table.
func (fc FileConfig) parsePatterns(
	patterns []string,
) ([]parse.Pattern, error) {
	res := make([]parse.Pattern, 0, len(patterns))
	for _, pattern := range patterns {
		parts := strings.Split(pattern, ".")

		var p parse.Pattern
		switch {
		case len(parts) == 1 && parts[0] != "":
			p.Schema = parts[0]
		case len(parts) == 2 && parts[0] != "" && parts[1] != "":
			p.Schema = parts[0]
			p.Tables = parts[1]
		default:
			return nil, xerrors.Errorf("wrong pattern: %q", pattern)
		}
		res = append(res, p)
	}

	return res, nil
}
