package schema

import (
	"encoding/json"

	"golang.org/x/xerrors"
)

type schemaJSON struct {
	Name        string           `json:"name"`
	Tables      []tableJSON      `json:"tables"`
	ForeignKeys []foreignKeyJSON `json:"foreign_keys,omitempty"`
}

type tableJSON struct {
	Name       Identifier   `json:"name"`
	Comment    string       `json:"comment,omitempty"`
	IsView     bool         `json:"is_view,omitempty"`
	IsRemote   bool         `json:"is_remote,omitempty"`
	Columns    []columnJSON `json:"columns"`
	PrimaryKey []string     `json:"primary_key,omitempty"`
}

type columnJSON struct {
	Name       string `json:"name"`
	Num        int    `json:"num,omitempty"`
	TypeName   string `json:"type"`
	Length     int    `json:"length,omitempty"`
	IsUnique   bool   `json:"is_unique,omitempty"`
	IsNullable bool   `json:"is_nullable,omitempty"`
	Comment    string `json:"comment,omitempty"`

	NoImpliedParents  bool `json:"no_implied_parents,omitempty"`
	NoImpliedChildren bool `json:"no_implied_children,omitempty"`
	IsExcluded        bool `json:"is_excluded,omitempty"`
}

type foreignKeyJSON struct {
	Name          Identifier `json:"name"`
	ChildTable    string     `json:"child_table"`
	ChildColumns  []string   `json:"child_columns"`
	ParentTable   string     `json:"parent_table"`
	ParentColumns []string   `json:"parent_columns"`
	Origin        string     `json:"origin,omitempty"`
	DeleteRule    Rule       `json:"delete_rule,omitempty"`
	UpdateRule    Rule       `json:"update_rule,omitempty"`
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	dump := schemaJSON{Name: s.Name}
	for _, t := range s.SortedTables() {
		tj := tableJSON{
			Name:       t.Name,
			Comment:    t.Comment,
			IsView:     t.IsView,
			IsRemote:   t.IsRemote,
			Columns:    make([]columnJSON, 0, len(t.columns)),
			PrimaryKey: columnNames(t.primaryKey),
		}
		for _, col := range t.columns {
			tj.Columns = append(tj.Columns, columnJSON{
				Name:              col.Name,
				Num:               col.Num,
				TypeName:          col.TypeName,
				Length:            col.Length,
				IsUnique:          col.IsUnique,
				IsNullable:        col.IsNullable,
				Comment:           col.Comment,
				NoImpliedParents:  !col.AllowImpliedParents,
				NoImpliedChildren: !col.AllowImpliedChildren,
				IsExcluded:        col.IsExcluded,
			})
		}
		dump.Tables = append(dump.Tables, tj)
	}
	for _, fk := range s.ForeignKeys() {
		dump.ForeignKeys = append(dump.ForeignKeys, foreignKeyJSON{
			Name:          fk.Name,
			ChildTable:    fk.ChildTable.String(),
			ChildColumns:  columnNames(fk.ChildColumns),
			ParentTable:   fk.ParentTable.String(),
			ParentColumns: columnNames(fk.ParentColumns),
			Origin:        fk.Origin.String(),
			DeleteRule:    fk.DeleteRule,
			UpdateRule:    fk.UpdateRule,
		})
	}
	return json.Marshal(dump)
}

// UnmarshalJSON восстанавливает схему. Связи создаются через NewForeignKey,
// поэтому счетчики пересчитываются заново.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var dump schemaJSON
	if err := json.Unmarshal(data, &dump); err != nil {
		return err
	}

	res := New(dump.Name)
	for _, tj := range dump.Tables {
		t := NewTable(tj.Name.Schema, tj.Name.Name)
		t.Name.OID = tj.Name.OID
		t.Comment = tj.Comment
		t.IsView = tj.IsView
		t.IsRemote = tj.IsRemote
		for _, cj := range tj.Columns {
			col := NewColumn(cj.Name, cj.TypeName, cj.Length)
			col.Num = cj.Num
			col.IsUnique = cj.IsUnique
			col.IsNullable = cj.IsNullable
			col.Comment = cj.Comment
			col.AllowImpliedParents = !cj.NoImpliedParents
			col.AllowImpliedChildren = !cj.NoImpliedChildren
			col.IsExcluded = cj.IsExcluded
			if err := t.AddColumn(col); err != nil {
				return err
			}
		}
		pk, err := lookupColumns(t, tj.PrimaryKey)
		if err != nil {
			return xerrors.Errorf("primary key: %w", err)
		}
		if err := t.SetPrimaryKey(pk...); err != nil {
			return err
		}
		if err := res.AddTable(t); err != nil {
			return err
		}
	}

	for _, fj := range dump.ForeignKeys {
		if err := res.loadForeignKey(fj); err != nil {
			return xerrors.Errorf("load foreign key %q: %w", fj.Name, err)
		}
	}

	*s = *res
	return nil
}

func (s *Schema) loadForeignKey(fj foreignKeyJSON) error {
	child, ok := s.Tables[fj.ChildTable]
	if !ok {
		return invalidf("child table %q not found", fj.ChildTable)
	}
	parent, ok := s.Tables[fj.ParentTable]
	if !ok {
		return invalidf("parent table %q not found", fj.ParentTable)
	}
	childCols, err := lookupColumns(child, fj.ChildColumns)
	if err != nil {
		return err
	}
	parentCols, err := lookupColumns(parent, fj.ParentColumns)
	if err != nil {
		return err
	}
	origin, err := parseOrigin(fj.Origin)
	if err != nil {
		return err
	}
	fk, err := NewForeignKey(fj.Name, childCols, parentCols, origin)
	if err != nil {
		return err
	}
	if fj.DeleteRule != "" {
		fk.DeleteRule = fj.DeleteRule
	}
	if fj.UpdateRule != "" {
		fk.UpdateRule = fj.UpdateRule
	}
	return nil
}

func parseOrigin(origin string) (Origin, error) {
	for _, o := range []Origin{OriginDeclared, OriginImplied, OriginRails} {
		if o.String() == origin {
			return o, nil
		}
	}
	if origin == "" {
		return OriginDeclared, nil
	}
	return 0, invalidf("unknown foreign key origin %q", origin)
}

func lookupColumns(t *Table, names []string) ([]*Column, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		col := t.Column(name)
		if col == nil {
			return nil, invalidf("column %q not found in table %q", name, t)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func columnNames(cols []*Column) []string {
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.Name)
	}
	return names
}
