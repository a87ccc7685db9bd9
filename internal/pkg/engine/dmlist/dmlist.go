// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package dmlist implements the engine's intrusive circular list.
//
// A List is a sentinel head whose next/prev pointers link the entries in a
// ring. The head carries no value; walking past the last entry lands back on
// the head, which is how iteration ends. Lists are owned by the engine that
// returned them and are only read by consumers.
package dmlist

// Node is a list element. The zero value is not linked into any list.
type Node[T any] struct {
	next, prev *Node[T]
	list       *List[T]

	// Value is the payload carried by the element.
	Value T
}

// List is the sentinel head of a circular doubly linked list.
type List[T any] struct {
	head Node[T]
	len  int
}

// New returns an initialized, empty list.
func New[T any]() *List[T] {
	return new(List[T]).Init()
}

// Init clears l and points the head at itself.
func (l *List[T]) Init() *List[T] {
	l.head.next = &l.head
	l.head.prev = &l.head
	l.head.list = l
	l.len = 0
	return l
}

// lazyInit makes the zero value usable.
func (l *List[T]) lazyInit() {
	if l.head.next == nil {
		l.Init()
	}
}

// Empty reports whether the head points back at itself.
func (l *List[T]) Empty() bool {
	return l.head.next == nil || l.head.next == &l.head
}

// Len returns the number of entries.
func (l *List[T]) Len() int {
	return l.len
}

// Add appends v before the head, making it the last entry.
func (l *List[T]) Add(v T) *Node[T] {
	l.lazyInit()
	return l.insert(&Node[T]{Value: v}, l.head.prev)
}

// AddHead inserts v directly after the head, making it the first entry.
func (l *List[T]) AddHead(v T) *Node[T] {
	l.lazyInit()
	return l.insert(&Node[T]{Value: v}, &l.head)
}

func (l *List[T]) insert(n, at *Node[T]) *Node[T] {
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
	n.list = l
	l.len++
	return n
}

// Del unlinks n from l. Unlinked nodes are ignored.
func (l *List[T]) Del(n *Node[T]) {
	if n == nil || n.list != l || n == &l.head {
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
	n.list = nil
	l.len--
}

// First returns the first entry or nil when the list is empty.
func (l *List[T]) First() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.head.next
}

// Last returns the last entry or nil when the list is empty.
func (l *List[T]) Last() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.head.prev
}

// Next returns the entry after n, or nil once the walk reaches the head.
func (l *List[T]) Next(n *Node[T]) *Node[T] {
	if n == nil || n.list != l || n.next == &l.head {
		return nil
	}
	return n.next
}

// Prev returns the entry before n, or nil once the walk reaches the head.
func (l *List[T]) Prev(n *Node[T]) *Node[T] {
	if n == nil || n.list != l || n.prev == &l.head {
		return nil
	}
	return n.prev
}

// FromSlice builds a list holding vs in order.
func FromSlice[T any](vs []T) *List[T] {
	l := New[T]()
	for _, v := range vs {
		l.Add(v)
	}
	return l
}
