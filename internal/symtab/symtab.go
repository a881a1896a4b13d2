// Package symtab holds the label, absolute-symbol, entry, external,
// relocation and template tables of one assembly Context (spec §3).
package symtab

import "fmt"

// Ext records one unresolved fix-up site for an external symbol.
type Ext struct {
	Section string
	Offset  int
}

// Template describes a named struct layout: field name to byte offset,
// plus the pseudo-field "_" for the template's total size.
type Template struct {
	Name   string
	Fields map[string]int
	closed bool
}

// Table is the set of symbol tables threaded through one compilation.
type Table struct {
	// Labels is section-local: Labels[section][name] = offset.
	Labels map[string]map[string]int

	// Abses holds absolute-valued symbols: labels defined inside "$abs"
	// and `set` aliases. Globally unique across the whole compilation.
	Abses map[string]int

	// Ents holds exported offsets per section: Ents[section][name] = offset.
	Ents map[string]map[string]int

	// Exts holds the fix-up sites of every external reference.
	Exts map[string][]Ext

	// RelList holds, per section, the offsets whose byte holds a
	// relocatable address that the linker must adjust.
	RelList map[string][]int

	// Tpls holds template field tables by template name.
	Tpls map[string]*Template
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		Labels:  map[string]map[string]int{},
		Abses:   map[string]int{},
		Ents:    map[string]map[string]int{},
		Exts:    map[string][]Ext{},
		RelList: map[string][]int{},
		Tpls:    map[string]*Template{},
	}
}

// DefineLabel registers a section-local label. Redefinition is an error
// (spec §4.5: "Labels are registered only once; redefinition is a pass-1
// error").
func (t *Table) DefineLabel(section, name string, offset int) error {
	if t.Labels[section] == nil {
		t.Labels[section] = map[string]int{}
	}
	if _, ok := t.Labels[section][name]; ok {
		return fmt.Errorf("label %q redefined in section %q", name, section)
	}
	t.Labels[section][name] = offset
	return nil
}

// LookupLabel finds a label in the given section.
func (t *Table) LookupLabel(section, name string) (int, bool) {
	m, ok := t.Labels[section]
	if !ok {
		return 0, false
	}
	v, ok := m[name]
	return v, ok
}

// DefineAbs registers an absolute symbol. Globally unique.
func (t *Table) DefineAbs(name string, value int) error {
	if _, ok := t.Abses[name]; ok {
		return fmt.Errorf("absolute symbol %q redefined", name)
	}
	t.Abses[name] = value
	return nil
}

// LookupAbs finds an absolute symbol.
func (t *Table) LookupAbs(name string) (int, bool) {
	v, ok := t.Abses[name]
	return v, ok
}

// AddEntry records an exported offset for a section. A label cannot be
// both entry and ext (spec §4.5 precondition).
func (t *Table) AddEntry(section, name string, offset int) error {
	if _, isExt := t.Exts[name]; isExt {
		return fmt.Errorf("label %q cannot be both entry and external", name)
	}
	if t.Ents[section] == nil {
		t.Ents[section] = map[string]int{}
	}
	t.Ents[section][name] = offset
	return nil
}

// AddExtSite records one fix-up site for an external symbol.
func (t *Table) AddExtSite(name, section string, offset int) error {
	if _, hasEnts := t.entryExists(name); hasEnts {
		return fmt.Errorf("label %q cannot be both entry and external", name)
	}
	t.Exts[name] = append(t.Exts[name], Ext{Section: section, Offset: offset})
	return nil
}

func (t *Table) entryExists(name string) (string, bool) {
	for section, ents := range t.Ents {
		if _, ok := ents[name]; ok {
			return section, true
		}
	}
	return "", false
}

// AddRel marks an offset within a section as a relocation site.
func (t *Table) AddRel(section string, offset int) {
	t.RelList[section] = append(t.RelList[section], offset)
}

// OpenTemplate begins a new named template. Duplicate templates are
// rejected on pass 1 (spec §4.3).
func (t *Table) OpenTemplate(name string) (*Template, error) {
	if _, ok := t.Tpls[name]; ok {
		return nil, fmt.Errorf("template %q redefined", name)
	}
	tpl := &Template{Name: name, Fields: map[string]int{}}
	t.Tpls[name] = tpl
	return tpl, nil
}

// AddField records a template field offset.
func (tpl *Template) AddField(name string, offset int) error {
	if _, ok := tpl.Fields[name]; ok {
		return fmt.Errorf("template field %q redefined in %q", name, tpl.Name)
	}
	tpl.Fields[name] = offset
	return nil
}

// Close records the template's total size under the pseudo-field "_".
func (tpl *Template) Close(size int) {
	tpl.Fields["_"] = size
	tpl.closed = true
}

// LookupTemplateField resolves "Template.field".
func (t *Table) LookupTemplateField(tplName, field string) (int, bool) {
	tpl, ok := t.Tpls[tplName]
	if !ok {
		return 0, false
	}
	v, ok := tpl.Fields[field]
	return v, ok
}
