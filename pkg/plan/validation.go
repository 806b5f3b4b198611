package plan

import (
	"fmt"
	"strings"
)

// ValidationErrors collects every problem found in a plan or manifest so
// the user sees all of them at once instead of fixing one per CI run.
type ValidationErrors struct {
	errors []error
}

// NewValidationErrors creates an empty collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{errors: make([]error, 0)}
}

// Add appends an error to the collection. Nil errors are ignored.
func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		ve.errors = append(ve.errors, err)
	}
}

// AddErrorf appends a formatted error to the collection.
func (ve *ValidationErrors) AddErrorf(format string, args ...any) {
	ve.errors = append(ve.errors, fmt.Errorf(format, args...))
}

// HasErrors returns true if anything was collected.
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.errors) > 0
}

// Error implements the error interface.
func (ve *ValidationErrors) Error() string {
	if len(ve.errors) == 0 {
		return ""
	}
	if len(ve.errors) == 1 {
		return ve.errors[0].Error()
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(ve.errors)))
	for i, err := range ve.errors {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return b.String()
}

// ErrorOrNil returns the collection as an error when non-empty.
func (ve *ValidationErrors) ErrorOrNil() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// Validate checks the structural invariants of a plan: required fields on
// every entry, closed type sets, build targets on file entries, and
// unique sanitized output names.
func (p Plan) Validate() error {
	ve := NewValidationErrors()

	if p.WorkingDirectory == "" {
		ve.AddErrorf("working_directory is required")
	}

	seenOutputs := make(map[string]int, len(p.Build))

	for i, entry := range p.Build {
		context := fmt.Sprintf("build[%d]", i)
		entry.validate(ve, context)

		if prev, ok := seenOutputs[entry.Output]; ok {
			ve.AddErrorf("%s: output %q collides with build[%d]", context, entry.Output, prev)
		}
		seenOutputs[entry.Output] = i
	}

	return ve.ErrorOrNil()
}

// Validate checks the structural invariants of a single entry. Output
// uniqueness is a plan-level property and is not checked here.
func (e BuildEntry) Validate() error {
	ve := NewValidationErrors()
	e.validate(ve, "entry")

	return ve.ErrorOrNil()
}

func (e BuildEntry) validate(ve *ValidationErrors, context string) {
	if err := e.Type.Validate(); err != nil {
		ve.AddErrorf("%s: %s", context, err)
	}
	if err := e.OutputType.Validate(); err != nil {
		ve.AddErrorf("%s: %s", context, err)
	}
	for field, value := range map[string]string{
		"name":             e.Name,
		"source_file":      e.SourceFile,
		"source_directory": e.SourceDirectory,
		"output":           e.Output,
	} {
		if value == "" {
			ve.AddErrorf("%s: %s is required", context, field)
		}
	}

	if e.Type == TypeFile && e.BuildTarget == "" {
		ve.AddErrorf("%s: file entry %q has no build_target", context, e.Name)
	}
	if !e.Type.ContainerImage() && e.OutputType == OutputRegistry {
		ve.AddErrorf("%s: %s entry %q cannot push to a registry",
			context, e.Type, e.Name)
	}

	if e.Output != SanitizeName(e.Output) {
		ve.AddErrorf("%s: output %q is not sanitized", context, e.Output)
	}
}
