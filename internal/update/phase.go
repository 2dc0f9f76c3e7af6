package update

// Phase is a state of the update state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseResolving
	PhaseDeciding
	PhaseFetchingClient
	PhaseFetchingRuntime
	PhaseExtractingRuntime
	PhaseCommitting
	PhaseCleanup
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseInit:              "init",
	PhaseResolving:         "resolving",
	PhaseDeciding:          "deciding",
	PhaseFetchingClient:    "fetching client",
	PhaseFetchingRuntime:   "fetching runtime",
	PhaseExtractingRuntime: "extracting runtime",
	PhaseCommitting:        "committing",
	PhaseCleanup:           "cleanup",
	PhaseDone:              "done",
	PhaseFailed:            "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Range is the slice of the overall 0-100 progress bar a stage occupies.
type Range struct {
	Start int
	End   int
}

// At maps a stage-local fraction onto the overall bar.
func (r Range) At(fraction float64) int {
	switch {
	case fraction <= 0:
		return r.Start
	case fraction >= 1:
		return r.End
	}
	return r.Start + int(fraction*float64(r.End-r.Start))
}

// Stage ranges of one run.
var (
	RangeResolve = Range{Start: 0, End: 10}
	RangeClient  = Range{Start: 10, End: 30}
	RangeRuntime = Range{Start: 30, End: 90}
	RangeExtract = Range{Start: 90, End: 95}
)

// Status labels shown alongside progress.
const (
	LabelResolving      = "Checking for updates..."
	LabelCleanup        = "Cleaning up..."
	LabelDone           = "Done!"
	labelDownloadFormat = "Downloading %s..."
	labelUnzipFormat    = "Unzipping %s..."
	labelDeleteFormat   = "Deleting %s..."
)
