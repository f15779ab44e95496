package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the option set of a command.
type NamedFlagSetOptions interface {
	// Flags returns the option set's flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from other fields after flags and config are loaded.
	Complete() error

	// Validate reports every invalid field, aggregated.
	Validate() error
}
