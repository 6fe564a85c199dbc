package config

import "fmt"

// UnknownPresetError is returned when an environment references a preset
// that does not exist. User-fixable; surfaced verbatim.
type UnknownPresetError struct {
	Preset string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown preset %q", e.Preset)
}

// TypeMismatchError is returned when an override redeclares a key with a
// different type than its default or preset.
type TypeMismatchError struct {
	Key      string
	Declared ValueType
	Override ValueType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("config key %q: override type %s conflicts with declared type %s", e.Key, e.Override, e.Declared)
}

// UnknownEnvironmentError is returned when resolving a persistent
// environment that is not declared in the environments file.
type UnknownEnvironmentError struct {
	Name string
}

func (e *UnknownEnvironmentError) Error() string {
	return fmt.Sprintf("unknown environment %q", e.Name)
}
