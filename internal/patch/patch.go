// Package patch merges sparse partial records onto stored records.
//
// A Schema lists the mergeable fields of a record type T together with the
// matching optional field on its partial form P. Merge walks that list in
// declaration order and copies every value that is present on the partial
// record; absent values leave the stored record untouched. The schema is
// built once per record type, so no runtime reflection is involved.
package patch

import (
	"errors"
	"fmt"
)

var ErrMerge = errors.New("merge failed")

// MergeError reports a broken schema or an unusable input pair. It never
// describes a user mistake.
type MergeError struct {
	Field  string
	Reason string
}

func (e *MergeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrMerge, e.Reason)
	}
	return fmt.Sprintf("%v: field %q: %s", ErrMerge, e.Field, e.Reason)
}

func (e *MergeError) Unwrap() error {
	return ErrMerge
}

// Field describes one mergeable field of T and where its optional value
// lives on P.
type Field[T, P any] struct {
	Name  string
	apply func(dst *T, src *P) bool
}

// Optional builds a field descriptor from a getter on the partial record
// and a setter on the stored record. A nil pointer from get means "not
// provided".
func Optional[T, P, V any](name string, get func(*P) *V, set func(*T, V)) Field[T, P] {
	f := Field[T, P]{Name: name}
	if get == nil || set == nil {
		return f
	}

	f.apply = func(dst *T, src *P) bool {
		v := get(src)
		if v == nil {
			return false
		}
		set(dst, *v)
		return true
	}

	return f
}

type Schema[T, P any] struct {
	fields []Field[T, P]
}

func NewSchema[T, P any](fields ...Field[T, P]) (*Schema[T, P], error) {
	if len(fields) == 0 {
		return nil, &MergeError{Reason: "schema has no fields"}
	}

	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, &MergeError{Reason: fmt.Sprintf("field #%d has no name", i)}
		}
		if _, dup := seen[f.Name]; dup {
			return nil, &MergeError{Field: f.Name, Reason: "declared twice"}
		}
		if f.apply == nil {
			return nil, &MergeError{Field: f.Name, Reason: "missing getter or setter"}
		}
		seen[f.Name] = struct{}{}
	}

	return &Schema[T, P]{fields: fields}, nil
}

// MustNewSchema is NewSchema for package-level schemas; it panics on a
// malformed field list.
func MustNewSchema[T, P any](fields ...Field[T, P]) *Schema[T, P] {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema[T, P]) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Merge copies every present field of incoming onto existing and returns
// existing. A nil incoming record is treated as fully absent.
func (s *Schema[T, P]) Merge(existing *T, incoming *P) (*T, error) {
	if s == nil || len(s.fields) == 0 {
		return nil, &MergeError{Reason: "no schema"}
	}
	if existing == nil {
		return nil, &MergeError{Reason: "existing record is nil"}
	}
	if incoming == nil {
		return existing, nil
	}

	for _, f := range s.fields {
		f.apply(existing, incoming)
	}

	return existing, nil
}

// Present lists the names of the fields incoming actually carries, in
// schema order.
func (s *Schema[T, P]) Present(incoming *P) []string {
	if s == nil || incoming == nil {
		return nil
	}

	var probe T
	var names []string
	for _, f := range s.fields {
		if f.apply(&probe, incoming) {
			names = append(names, f.Name)
		}
	}
	return names
}
