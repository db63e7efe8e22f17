package poll

import (
	"context"
)

// Result is the outcome of one collection fetch. A failed fetch carries its
// error and no items, so "empty because it failed" stays distinguishable
// from "empty".
type Result[T any] struct {
	Items []T
	Err   error
}

// Degraded reports whether the collection is empty because its fetch failed.
func (r Result[T]) Degraded() bool {
	return r.Err != nil
}

// Len returns the number of items.
func (r Result[T]) Len() int {
	return len(r.Items)
}

// Value is the outcome of one scalar fetch.
type Value[T any] struct {
	Value T
	Err   error
}

// Degraded reports whether Value holds the zero value because its fetch failed.
func (v Value[T]) Degraded() bool {
	return v.Err != nil
}

// Source is one named fetch that contributes a field to a snapshot S.
type Source[S any] struct {
	name  string
	fetch func(ctx context.Context) (assign func(*S), err error)
}

// Name returns the source name used in logs, metrics and Snapshot.Failures.
func (s Source[S]) Name() string {
	return s.name
}

// Collection builds a Source from a list fetch. field selects where in S the
// Result lands.
func Collection[S, T any](name string, fetch func(context.Context) ([]T, error), field func(*S) *Result[T]) Source[S] {
	return Source[S]{
		name: name,
		fetch: func(ctx context.Context) (func(*S), error) {
			items, err := fetch(ctx)
			if err != nil {
				return func(s *S) { *field(s) = Result[T]{Err: err} }, err
			}
			return func(s *S) { *field(s) = Result[T]{Items: items} }, nil
		},
	}
}

// Single builds a Source from a scalar fetch. field selects where in S the
// Value lands.
func Single[S, T any](name string, fetch func(context.Context) (T, error), field func(*S) *Value[T]) Source[S] {
	return Source[S]{
		name: name,
		fetch: func(ctx context.Context) (func(*S), error) {
			v, err := fetch(ctx)
			if err != nil {
				return func(s *S) { *field(s) = Value[T]{Err: err} }, err
			}
			return func(s *S) { *field(s) = Value[T]{Value: v} }, nil
		},
	}
}
