package logshrink

// StringPool interns strings for one chunk, assigning 1-based ids; id 0 is
// reserved to mean "absent" so that optional header fields (hostname,
// app_name, proc_id, msg_id) can be represented without a separate
// presence bitmap.
type StringPool struct {
	strings []string
	index   map[string]uint32
}

// NewStringPool returns an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{index: make(map[string]uint32)}
}

// Strings returns the interned strings in id order (id i+1 -> Strings()[i]).
func (p *StringPool) Strings() []string {
	return p.strings
}

// ID interns s, if not nil, returning its 1-based id; a nil s returns 0.
func (p *StringPool) ID(s *string) uint32 {
	if s == nil {
		return 0
	}
	return p.Intern(*s)
}

// Intern returns s's 1-based id, assigning a new one if s has not been seen
// in this pool before.
func (p *StringPool) Intern(s string) uint32 {
	if id, ok := p.index[s]; ok {
		return id
	}
	p.strings = append(p.strings, s)
	id := uint32(len(p.strings))
	p.index[s] = id
	return id
}
