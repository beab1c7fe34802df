package schema

// Validate проверяет согласованность связей модели.
func (s *Schema) Validate() error {
	for key, t := range s.Tables {
		if t == nil {
			return invalidf("table %q is nil", key)
		}
		if key != t.String() {
			return invalidf("table %q registered as %q", t, key)
		}
		if err := t.validate(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) validate(s *Schema) error {
	for _, col := range t.columns {
		if col.table != t {
			return invalidf("column %q is not owned by table %q", col.Name, t)
		}
	}
	for _, col := range t.primaryKey {
		if col.table != t || !col.IsPrimary {
			return invalidf("primary key column %q of table %q is inconsistent", col.Name, t)
		}
	}

	if t.numParents != len(t.foreignKeys) || t.numChildren != len(t.referencedBy) {
		return invalidf("table %q: link counters do not match constraints", t)
	}
	if t.numParents > t.maxParents || t.numChildren > t.maxChildren {
		return invalidf("table %q: current link counters exceed maximum", t)
	}

	for _, fk := range t.foreignKeys {
		if fk.ChildTable != t {
			return invalidf("foreign key %q is attached to table %q but owned by %q", fk, t, fk.ChildTable)
		}
		if err := fk.validate(s); err != nil {
			return err
		}
	}
	for _, fk := range t.referencedBy {
		if fk.ParentTable != t {
			return invalidf("foreign key %q references table %q but is attached to %q", fk, fk.ParentTable, t)
		}
		if !fk.linked {
			return invalidf("foreign key %q is unlinked but still referenced by %q", fk, t)
		}
	}
	return nil
}

func (fk *ForeignKey) validate(s *Schema) error {
	if !fk.linked {
		return invalidf("foreign key %q is unlinked but still attached", fk)
	}
	if s.Tables[fk.ParentTable.String()] != fk.ParentTable {
		return invalidf("foreign key %q references table %q outside of schema", fk, fk.ParentTable)
	}
	if len(fk.ChildColumns) == 0 || len(fk.ChildColumns) != len(fk.ParentColumns) {
		return invalidf("foreign key %q has mismatched columns", fk)
	}
	for i := range fk.ChildColumns {
		if err := checkColumn(fk.Name, fk.ChildTable, fk.ChildColumns[i]); err != nil {
			return err
		}
		if err := checkColumn(fk.Name, fk.ParentTable, fk.ParentColumns[i]); err != nil {
			return err
		}
		if fk.ChildColumns[i].ParentConstraint(fk.ParentColumns[i]) == nil {
			return invalidf("foreign key %q: column %q is not linked to %q",
				fk, fk.ChildColumns[i], fk.ParentColumns[i])
		}
	}
	return nil
}
