package rwasm

// ImportEntry binds an import name to a syscall index and its arity.
type ImportEntry struct {
	Name    string
	Index   uint32
	Params  uint8
	Results uint8
}

// ImportLinker resolves the import names of a module to syscalls.
type ImportLinker struct {
	entries map[string]ImportEntry
}

func NewImportLinker() *ImportLinker {
	return &ImportLinker{entries: make(map[string]ImportEntry)}
}

// Insert registers an entry under its name, replacing an earlier one.
func (l *ImportLinker) Insert(entry ImportEntry) {
	l.entries[entry.Name] = entry
}

func (l *ImportLinker) Resolve(name string) (ImportEntry, bool) {
	e, ok := l.entries[name]
	return e, ok
}

func (l *ImportLinker) Len() int {
	return len(l.entries)
}
