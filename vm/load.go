package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Load parses a comma-separated program into initial memory. Whitespace
// around the whole text and around each element is ignored.
func Load(text string) ([]Word, error) {
	text = strings.TrimSpace(text)
	fields := strings.Split(text, ",")
	memory := make([]Word, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, &LoadError{Index: i, Text: f, Err: err}
		}
		memory[i] = v
	}
	return memory, nil
}

// LoadReader reads the first line of r and parses it with Load.
func LoadReader(r io.Reader) ([]Word, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("intcode: read program: %w", err)
	}
	return Load(line)
}

// Format renders memory back into program text.
func Format(memory []Word) string {
	var sb strings.Builder
	for i, v := range memory {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	return sb.String()
}
