package chat

// outcome is the result of a single external call: either a value or an error.
type outcome[T any] struct {
	value T
	err   error
}

func succeeded[T any](v T) outcome[T] { return outcome[T]{value: v} }

func failed[T any](err error) outcome[T] { return outcome[T]{err: err} }

func (o outcome[T]) ok() bool { return o.err == nil }
