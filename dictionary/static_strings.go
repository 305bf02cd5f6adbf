package dictionary

// StaticStringTable is the ordered set of string literals referenced by
// shutdown and output calls, keyed by the string itself and assigned
// monotonically increasing 16-bit IDs starting at 2 (spec §3 "Static
// string table"). IDs 0 and 1 are reserved for identify_response and
// identify so the static_string_id enumeration never collides with them.
type StaticStringTable struct {
	ids   map[string]int
	order []string
}

// NewStaticStringTable returns an empty table.
func NewStaticStringTable() *StaticStringTable {
	return &StaticStringTable{ids: make(map[string]int)}
}

// Intern records s if not already present and returns its ID.
func (t *StaticStringTable) Intern(s string) int {
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := len(t.order) + 2
	t.ids[s] = id
	t.order = append(t.order, s)
	return id
}

// ID returns the ID previously assigned to s, or false if s was never
// interned.
func (t *StaticStringTable) ID(s string) (int, bool) {
	id, ok := t.ids[s]
	return id, ok
}

// Enumeration synthesizes the static_string_id enumeration (spec §4.6
// step 3) from the current contents of the table.
func (t *StaticStringTable) Enumeration() *Enumeration {
	e := &Enumeration{Name: "static_string_id", HostName: "static_string_id", StartAt: 2}
	for _, s := range t.order {
		e.Variants = append(e.Variants, Variant{Name: s})
	}
	return e
}
