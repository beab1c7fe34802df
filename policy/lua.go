package policy

import (
	"io"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

// Имя функции в скрипте. Принимает описание таблицы и колонки,
// возвращает таблицу {implied_parents = bool, implied_children = bool, excluded = bool} или nil.
const luaPolicyFuncName = "column_policy"

// Lua политика, заданная скриптом.
type Lua struct {
	l   *lua.LState
	log *zap.Logger

	fn lua.LValue
}

func NewLua(log *zap.Logger, source io.Reader, name string) (*Lua, error) {
	l := lua.NewState()

	lp := &Lua{
		l:   l,
		log: log.Named("lua-policy").With(zap.String("name", name)),
	}

	compiled, err := l.Load(source, name)
	if err != nil {
		l.Close()
		return nil, xerrors.Errorf("lua source failed to compile: %w", err)
	}

	// загрузка скомпилированной функции в машину
	l.Push(compiled)
	if err := l.PCall(0, 0, nil); err != nil {
		l.Close()
		return nil, xerrors.Errorf("load policy source: %w", err)
	}

	fn := l.GetGlobal(luaPolicyFuncName)
	if fn.Type() != lua.LTFunction {
		l.Close()
		return nil, xerrors.Errorf(
			"lua policy must be a Lua function, but %s is %s",
			luaPolicyFuncName, fn.Type().String())
	}
	lp.fn = fn

	return lp, nil
}

func (lp *Lua) Close() { lp.l.Close() }

func (lp *Lua) Apply(s *schema.Schema) error {
	lp.l.SetGlobal("schema", s.ToLua(lp.l))
	for _, t := range s.SortedTables() {
		ltable := t.ToLua(lp.l)
		for _, col := range t.Columns() {
			d, err := lp.decide(ltable, col)
			if err != nil {
				return xerrors.Errorf("apply policy to %q: %w", col, err)
			}
			d.apply(col)
		}
	}
	return nil
}

func (lp *Lua) decide(ltable *lua.LTable, col *schema.Column) (Decision, error) {
	var d Decision
	err := lp.l.CallByParam(lua.P{
		Fn:      lp.fn,
		NRet:    1,
		Protect: true,
	}, ltable, col.ToLua(lp.l))
	if err != nil {
		return d, err
	}
	ret := lp.l.Get(-1)
	lp.l.Pop(1)

	switch ret := ret.(type) {
	case *lua.LNilType:
		return d, nil
	case *lua.LTable:
		d.NoImpliedParents = isFalse(ret.RawGetString("implied_parents"))
		d.NoImpliedChildren = isFalse(ret.RawGetString("implied_children"))
		d.Excluded = lua.LVAsBool(ret.RawGetString("excluded"))
		if d != (Decision{}) {
			lp.log.Debug("column restricted", zap.Stringer("column", col), zap.Reflect("decision", d))
		}
		return d, nil
	default:
		return d, xerrors.Errorf("%s must return a table or nil, got %s", luaPolicyFuncName, ret.Type().String())
	}
}

// isFalse отличает явный false от отсутствующего значения.
func isFalse(v lua.LValue) bool {
	return v == lua.LFalse
}
