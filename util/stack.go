package util

// Stack is a LIFO backed by a slice. The zero value is an empty stack.
type Stack[A any] struct {
	items []A
}

func (s *Stack[A]) Push(v A) {
	s.items = append(s.items, v)
}

// Pop removes the top of the stack, ok is false when it was empty
func (s *Stack[A]) Pop() (top A, ok bool) {
	if len(s.items) == 0 {
		return top, false
	}
	top = s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top, true
}

func (s *Stack[A]) Len() int {
	return len(s.items)
}
