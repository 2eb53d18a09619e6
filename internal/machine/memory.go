package machine

// WordMemory is a Memory backed by a fixed set of word-aligned values.
// It describes a stack image captured out of process, such as one read from a
// core file, or built by hand.
type WordMemory map[uintptr]uintptr

var _ Memory = WordMemory(nil)

// ReadWord implements Memory.
func (m WordMemory) ReadWord(addr uintptr) (uintptr, bool) {
	v, ok := m[addr]
	return v, ok
}

// PushFrame records a frame record at fp: the caller's frame pointer followed
// by the return address, which is the layout frame-pointer ABIs use on amd64
// and arm64.
func (m WordMemory) PushFrame(fp, callerFP, returnAddr uintptr) {
	m[fp] = callerFP
	m[fp+WordSize] = returnAddr
}
