package segment

import "fmt"

// The converters fail fast: every error below aborts the whole run before
// any output file is written. Callers distinguish the classes with
// errors.As.

// ConfigurationError reports an inconsistency between the inputs and the
// organ tables, such as a mask file whose name has no ID, or a reference
// directory that does not contain exactly one series.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// InputValidationError reports an input file that failed validation before
// processing, such as a slice image of the wrong content type or with an
// unparseable slice index in its name.
type InputValidationError struct {
	Path   string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Path, e.Reason)
}

// PathError reports a missing destination path or directory argument.
type PathError struct {
	What string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s is not specified", e.What)
}
