package rwasm

// ModuleBuilder assembles a Module function by function.
type ModuleBuilder struct {
	m Module
}

func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{m: Module{Entrypoints: make(map[string]uint32)}}
}

// Signature returns the index of the signature, adding it if needed.
func (b *ModuleBuilder) Signature(params, results uint8) uint32 {
	ft := FuncType{Params: params, Results: results}
	for i, s := range b.m.Signatures {
		if s == ft {
			return uint32(i)
		}
	}
	b.m.Signatures = append(b.m.Signatures, ft)
	return uint32(len(b.m.Signatures) - 1)
}

// Import returns the index of the named syscall import, adding it if needed.
func (b *ModuleBuilder) Import(name string) uint32 {
	for i, n := range b.m.Imports {
		if n == name {
			return uint32(i)
		}
	}
	b.m.Imports = append(b.m.Imports, name)
	return uint32(len(b.m.Imports) - 1)
}

// Function appends a function body and returns its index.
func (b *ModuleBuilder) Function(params, results uint8, code ...Instruction) uint32 {
	sig := b.Signature(params, results)
	b.m.Funcs = append(b.m.Funcs, uint32(len(b.m.Code)))
	b.m.FuncSignatures = append(b.m.FuncSignatures, sig)
	b.m.Code = append(b.m.Code, code...)
	return uint32(len(b.m.Funcs) - 1)
}

// NextFunction is the index the next call to Function returns.
func (b *ModuleBuilder) NextFunction() uint32 {
	return uint32(len(b.m.Funcs))
}

func (b *ModuleBuilder) Entrypoint(name string, fn uint32) *ModuleBuilder {
	b.m.Entrypoints[name] = fn
	return b
}

func (b *ModuleBuilder) Memory(initial, maximum uint32) *ModuleBuilder {
	b.m.Memory = MemoryLimits{Initial: initial, Maximum: maximum}
	return b
}

func (b *ModuleBuilder) Data(offset uint32, data []byte) *ModuleBuilder {
	b.m.Data = append(b.m.Data, DataSegment{Offset: offset, Bytes: data})
	return b
}

// Global adds a mutable global and returns its index.
func (b *ModuleBuilder) Global(initial Value) uint32 {
	b.m.Globals = append(b.m.Globals, initial)
	return uint32(len(b.m.Globals) - 1)
}

// Table appends function references (or NullFunc) to the table.
func (b *ModuleBuilder) Table(funcs ...uint32) *ModuleBuilder {
	b.m.Table = append(b.m.Table, funcs...)
	return b
}

// Build validates and returns the module.
func (b *ModuleBuilder) Build() (*Module, error) {
	m := b.m
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
