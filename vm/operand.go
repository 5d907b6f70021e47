package vm

// fetch returns the raw cell at the cursor and advances it. Running off
// the end of memory mid-instruction means the program was truncated.
func (m *Machine) fetch() (Word, error) {
	if m.cursor < 0 || m.cursor >= len(m.memory) {
		return 0, m.fail(ErrUnexpectedEOF, Word(m.cursor))
	}
	raw := m.memory[m.cursor]
	m.cursor++
	return raw, nil
}

// address converts a raw operand to a memory index.
func (m *Machine) address(raw Word) (int, error) {
	if raw < 0 || raw >= Word(len(m.memory)) {
		return 0, m.fail(ErrInvalidAddress, raw)
	}
	return int(raw), nil
}

// read resolves an operand for reading.
func (m *Machine) read(mode Mode) (Word, error) {
	raw, err := m.fetch()
	if err != nil {
		return 0, err
	}
	if mode == Immediate {
		return raw, nil
	}
	addr, err := m.address(raw)
	if err != nil {
		return 0, err
	}
	return m.memory[addr], nil
}

// target resolves an operand that will be written through. The write
// itself is deferred to the caller so no memory changes until every
// operand of the instruction has resolved.
func (m *Machine) target(mode Mode) (int, error) {
	raw, err := m.fetch()
	if err != nil {
		return 0, err
	}
	if mode == Immediate {
		return 0, m.fail(ErrImmediateModeOutput, raw)
	}
	return m.address(raw)
}
