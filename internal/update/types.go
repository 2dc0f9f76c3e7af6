package update

import (
	"context"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/download"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/resolver"
)

// Resolver discovers the latest release and its descriptor.
type Resolver interface {
	ResolveLatest(ctx context.Context) (*resolver.Release, error)
}

// Fetcher downloads one artifact to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dst string, onProgress func(download.Progress)) (int64, error)
}

// Extractor unpacks a runtime archive into a directory.
type Extractor interface {
	Extract(archivePath, targetDir string) error
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(archivePath, targetDir string) error

func (f ExtractorFunc) Extract(archivePath, targetDir string) error {
	return f(archivePath, targetDir)
}

// Launcher hands off execution to the installed client.
type Launcher interface {
	Launch(path string) error
}

// ProgressSink receives overall progress in percent together with a status label.
type ProgressSink interface {
	Progress(percent int, label string)
}

// Recorder keeps a snapshot of an installed state that a commit supersedes.
type Recorder interface {
	Record(previous, next descriptor.Descriptor) error
}

// Replacer swaps a new client binary into place. Rollback restores the
// previous binary and Discard drops it once the new one is committed.
type Replacer interface {
	Replace(newBinary string) error
	Rollback() error
	Discard() error
}

type nopSink struct{}

func (nopSink) Progress(int, string) {}
