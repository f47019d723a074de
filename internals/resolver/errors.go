package resolver

import "fmt"

// ResolutionError is returned when the version lookup for a package
// fails (unknown package, registry unreachable)
type ResolutionError struct {
	Package string
	Range   string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s@%s: %v", e.Package, e.Range, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// FetchError is returned when downloading or building a package fails
type FetchError struct {
	Package string
	Version string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not fetch %s@%s: %v", e.Package, e.Version, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
