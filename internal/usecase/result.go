package usecase

import "errors"

// Result is what every Data Manager operation returns. Success is false only
// for rejected input; upstream trouble degrades to a successful Result whose
// data carries emergency rows and an explanatory Message.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	err error
}

func succeed[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Data: data, Message: message}
}

func fail[T any](err error) Result[T] {
	return Result[T]{Success: false, Error: err.Error(), err: err}
}

// Err returns the failure cause for errors.Is checks. It is nil on success.
func (r Result[T]) Err() error {
	return r.err
}

// IsInvalidInput reports whether the result was rejected for bad arguments.
func (r Result[T]) IsInvalidInput() bool {
	return errors.Is(r.err, ErrInvalidInput)
}
