package pipeline

import (
	"fmt"
	"sort"
)

// Table is an immutable, ordered lookup over stage definitions.
type Table struct {
	ordered []Definition
	byStage map[Stage]Definition
	byOrder map[int]Definition
	final   Definition
}

// NewTable validates defs and builds a Table. Forward stages must use the
// contiguous orders 0..n-1 and exactly one definition must use ErrorOrder.
func NewTable(defs []Definition) (*Table, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("stage table: no definitions")
	}
	t := &Table{
		byStage: make(map[Stage]Definition, len(defs)),
		byOrder: make(map[int]Definition, len(defs)),
	}
	sentinels := 0
	for _, def := range defs {
		if def.Stage == "" {
			return nil, fmt.Errorf("stage table: empty stage id")
		}
		if _, dup := t.byStage[def.Stage]; dup {
			return nil, fmt.Errorf("stage table: duplicate stage %q", def.Stage)
		}
		t.byStage[def.Stage] = def
		if def.Order == ErrorOrder {
			sentinels++
			continue
		}
		if def.Order < 0 {
			return nil, fmt.Errorf("stage table: stage %q has invalid order %d", def.Stage, def.Order)
		}
		if other, dup := t.byOrder[def.Order]; dup {
			return nil, fmt.Errorf("stage table: stages %q and %q share order %d", other.Stage, def.Stage, def.Order)
		}
		t.byOrder[def.Order] = def
		t.ordered = append(t.ordered, def)
	}
	if sentinels != 1 {
		return nil, fmt.Errorf("stage table: expected exactly one error sentinel, found %d", sentinels)
	}
	if len(t.ordered) == 0 {
		return nil, fmt.Errorf("stage table: no forward stages")
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Order < t.ordered[j].Order })
	for i, def := range t.ordered {
		if def.Order != i {
			return nil, fmt.Errorf("stage table: order gap before stage %q (order %d)", def.Stage, def.Order)
		}
	}
	t.final = t.ordered[len(t.ordered)-1]
	return t, nil
}

// DefaultTable returns the production table. It panics only if the built-in
// definitions are inconsistent, which tests guard against.
func DefaultTable() *Table {
	t, err := NewTable(DefaultDefinitions())
	if err != nil {
		panic(err)
	}
	return t
}

// Next returns the definition whose order is exactly current.order+1. The
// error sentinel is never returned. ok is false for unknown or final stages.
func (t *Table) Next(current Stage) (Definition, bool) {
	def, ok := t.byStage[current]
	if !ok || def.Order == ErrorOrder {
		return Definition{}, false
	}
	next, ok := t.byOrder[def.Order+1]
	return next, ok
}

// IsValid reports whether stage is defined in the table.
func (t *Table) IsValid(stage Stage) bool {
	_, ok := t.byStage[stage]
	return ok
}

// Definition looks up the definition of stage.
func (t *Table) Definition(stage Stage) (Definition, bool) {
	def, ok := t.byStage[stage]
	return def, ok
}

// Final returns the highest-order forward stage, the commit point of a run.
func (t *Table) Final() Definition {
	return t.final
}

// Initial returns the order-0 stage new projects start in.
func (t *Table) Initial() Definition {
	return t.ordered[0]
}

// Stages returns the forward stages in order. The error sentinel is excluded.
func (t *Table) Stages() []Definition {
	out := make([]Definition, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Required returns the required forward stages in order.
func (t *Table) Required() []Definition {
	out := make([]Definition, 0, len(t.ordered))
	for _, def := range t.ordered {
		if def.Required {
			out = append(out, def)
		}
	}
	return out
}

// Precedes reports whether a comes strictly before b in the forward order.
// Unknown stages and the error sentinel never precede anything.
func (t *Table) Precedes(a, b Stage) bool {
	da, okA := t.byStage[a]
	db, okB := t.byStage[b]
	if !okA || !okB || da.Order == ErrorOrder || db.Order == ErrorOrder {
		return false
	}
	return da.Order < db.Order
}
