package resolver

import "fmt"

// Stage names the resolution step that failed.
type Stage string

const (
	StageRelease    Stage = "release"
	StageDescriptor Stage = "descriptor"
)

// ResolutionError reports unreachable or malformed release metadata.
type ResolutionError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s from %s: %v", e.Stage, e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
