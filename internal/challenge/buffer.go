package challenge

import "strings"

// Buffer is the editable code of the current attempt. The text is the
// source of truth and the line view is derived from it, so the two can
// never disagree.
type Buffer struct {
	text string
}

// NewBuffer creates a buffer holding text
func NewBuffer(text string) Buffer {
	return Buffer{text: text}
}

// Text returns the full code
func (b Buffer) Text() string {
	return b.text
}

// Lines returns the code split on newlines. An empty buffer has no lines.
func (b Buffer) Lines() []string {
	if b.text == "" {
		return []string{}
	}
	return strings.Split(b.text, "\n")
}

// SetText replaces the whole buffer
func (b *Buffer) SetText(text string) {
	b.text = text
}

// SetLines replaces the buffer from a line view
func (b *Buffer) SetLines(lines []string) {
	b.text = strings.Join(lines, "\n")
}

// Empty reports whether the buffer holds no code
func (b Buffer) Empty() bool {
	return b.text == ""
}
