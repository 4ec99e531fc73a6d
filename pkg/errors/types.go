package errors

import (
	"fmt"
)

// MissingFieldError represents a preset entry that lacks a required field.
type MissingFieldError struct {
	Preset string
	Field  string
}

func (err MissingFieldError) Error() string {
	if err.Preset == "" {
		return fmt.Sprintf("missing required field: %s", err.Field)
	}
	return fmt.Sprintf("preset %q is missing required field: %s", err.Preset, err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// NotADirectory is returned when a path that must be a directory is a file.
type NotADirectory struct {
	Path string
}

func (err NotADirectory) Error() string {
	return fmt.Sprintf("%q is not a directory", err.Path)
}

// PresetNotFound is returned when looking up a preset name that isn't
// registered.
type PresetNotFound struct {
	Name string
}

func (err PresetNotFound) Error() string {
	return fmt.Sprintf("preset %q not found", err.Name)
}

// FriendlyMessage tells the user how to recover.
func (err PresetNotFound) FriendlyMessage() string {
	return fmt.Sprintf("No preset named %q exists.\n"+
		"Run `san list` to see the registered presets, or "+
		"`san add %s <source> <dest>` to create it.", err.Name, err.Name)
}

// ParseError is returned when the config document isn't valid YAML or has
// values of the wrong type.
type ParseError struct {
	Path string
	Err  error
}

func (err ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", err.Path, err.Err)
}

func (err ParseError) Unwrap() error {
	return err.Err
}

// IOError is returned when the config document or its directory can't be
// read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (err IOError) Error() string {
	return fmt.Sprintf("%s %q: %s", err.Op, err.Path, err.Err)
}

func (err IOError) Unwrap() error {
	return err.Err
}
