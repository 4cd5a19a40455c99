package transport

import "strings"

// HeaderList is a singly-linked list of raw header lines of the form
// "Name: value". The list head is passed to Handle.SetOption with
// OptionHTTPHeader; ownership stays with the caller until Free.
type HeaderList struct {
	line string
	next *HeaderList
}

// Append adds a raw header line to the list and returns the head. A nil
// list starts a new one. Append returns nil if the line is unusable
// (empty or containing a NUL byte); callers must treat nil as failure and
// keep their previous head.
func Append(list *HeaderList, line string) *HeaderList {
	if line == "" || strings.ContainsRune(line, '\x00') {
		return nil
	}
	node := &HeaderList{line: line}
	if list == nil {
		return node
	}
	tail := list
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = node
	return list
}

// Lines returns the raw header lines in insertion order.
func (l *HeaderList) Lines() []string {
	var lines []string
	for n := l; n != nil; n = n.next {
		lines = append(lines, n.line)
	}
	return lines
}

// Len returns the number of lines in the list.
func (l *HeaderList) Len() int {
	n := 0
	for node := l; node != nil; node = node.next {
		n++
	}
	return n
}

// Free releases the list. The receiver must not be used afterwards.
func (l *HeaderList) Free() {
	for n := l; n != nil; {
		next := n.next
		n.next = nil
		n = next
	}
}
