package api

// Result keeps the outcome of one engine invocation
type Result struct {
	// OutputPath points to the expected transcript artifact, set on success
	OutputPath string
	Stdout     string
	Stderr     string
}
