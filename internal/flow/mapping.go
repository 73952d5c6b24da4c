package flow

import "fmt"

// FieldMapping binds one spreadsheet column to one string field of a record.
// Set returns the updated record and must not mutate its argument.
type FieldMapping[T any] struct {
	Name string
	Get  func(T) string
	Set  func(T, string) T
}

// Field is shorthand for building a FieldMapping.
func Field[T any](name string, get func(T) string, set func(T, string) T) FieldMapping[T] {
	return FieldMapping[T]{Name: name, Get: get, Set: set}
}

// Titles returns the column titles in mapping order.
func Titles[T any](mappings []FieldMapping[T]) []string {
	titles := make([]string, len(mappings))
	for i, m := range mappings {
		titles[i] = m.Name
	}
	return titles
}

// ValidateMappings reports missing accessors and duplicate or empty names.
func ValidateMappings[T any](mappings []FieldMapping[T]) error {
	seen := make(map[string]int, len(mappings))
	for i, m := range mappings {
		if m.Name == "" {
			return fmt.Errorf("mapping %d has no name", i)
		}
		if m.Get == nil || m.Set == nil {
			return fmt.Errorf("mapping %q is missing an accessor", m.Name)
		}
		if prev, ok := seen[m.Name]; ok {
			return fmt.Errorf("mapping %q is declared at columns %d and %d", m.Name, prev+1, i+1)
		}
		seen[m.Name] = i
	}
	return nil
}
