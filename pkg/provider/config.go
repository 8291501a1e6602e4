package provider

// Config is the per-handle session configuration. It is immutable once
// a handle is constructed; one Config belongs to exactly one handle.
type Config struct {
	// Domain is the zone the handle operates on (e.g. "example.com").
	Domain string

	// DryRun makes SetRecord and DeleteRecord validate input and log the
	// request they would have sent without issuing any network call.
	// Reads are never guarded.
	DryRun bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Domain == "" {
		return &InputError{Field: "domain", Message: "required but empty"}
	}
	return nil
}
