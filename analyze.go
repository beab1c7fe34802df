package main

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/infer"
	"github.com/Feresey/relgraph/policy"
	"github.com/Feresey/relgraph/schema"
)

// analyzer готовит загруженную схему к анализу.
type analyzer struct {
	log *zap.Logger
	cnf *AppConfig
}

// applyPolicies помечает колонки по регулярным выражениям и скрипту из конфига.
func (a analyzer) applyPolicies(s *schema.Schema) error {
	re, err := policy.NewRegexp(a.cnf.Policy.Config)
	if err != nil {
		return xerrors.Errorf("create column policy: %w", err)
	}
	chain := policy.Chain{re}

	if path := a.cnf.Policy.LuaPath; path != "" {
		file, err := os.Open(path)
		if err != nil {
			return xerrors.Errorf("open policy script: %w", err)
		}
		defer file.Close()

		lp, err := policy.NewLua(a.log, file, path)
		if err != nil {
			return xerrors.Errorf("load policy script %q: %w", path, err)
		}
		defer lp.Close()
		chain = append(chain, lp)
	}

	if err := chain.Apply(s); err != nil {
		return xerrors.Errorf("apply column policies: %w", err)
	}
	return nil
}

func (a analyzer) matcher() infer.Matcher {
	chain := infer.Chain{infer.NewSignatureMatcher(a.log, a.cnf.Infer.SpecialKeys...)}
	if a.cnf.Infer.Rails {
		chain = append(chain, infer.NewRailsMatcher(a.log))
	}
	return chain
}

// inferLinks ищет связи, не объявленные в базе. Схема не меняется.
func (a analyzer) inferLinks(s *schema.Schema) []infer.Link {
	links := a.matcher().Match(s.SortedTables())
	a.log.Info("relationships inferred", zap.Int("n", len(links)))
	return links
}

// addImplied добавляет выведенные связи в схему, если вывод связей включен.
func (a analyzer) addImplied(s *schema.Schema) error {
	if !a.cnf.Infer.Enabled {
		return nil
	}
	fks, err := infer.Materialize(a.inferLinks(s))
	if err != nil {
		return xerrors.Errorf("materialize inferred relationships: %w", err)
	}
	a.log.Debug("implied foreign keys created", zap.Int("n", len(fks)))
	return nil
}
