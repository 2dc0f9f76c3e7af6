// Package update implements the launcher's update cycle: decide what is stale,
// fetch it with progress, and commit the new installed state atomically.
package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/archive"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/download"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/resolver"
)

// DefaultLockTimeout bounds how long a run waits for another launcher.
const DefaultLockTimeout = 10 * time.Second

// Options configure an Orchestrator.
type Options struct {
	InstallRoot           string
	ClientBinary          string
	VerifyRuntimeChecksum bool
	LockTimeout           time.Duration
}

// Result summarizes one run.
type Result struct {
	Release        *resolver.Release
	Plan           Plan
	ClientFetched  bool
	RuntimeFetched bool
	Committed      bool
	Launched       bool
	ClientPath     string
}

// Orchestrator drives one installation through the update state machine.
type Orchestrator struct {
	layout    Layout
	opts      Options
	store     *Store
	resolver  Resolver
	fetcher   Fetcher
	extractor Extractor
	launcher  Launcher
	sink      ProgressSink
	recorder  Recorder
	replacer  func(path string) Replacer
	onPhase   func(Phase)
	logger    *log.Entry

	mu      sync.Mutex
	phase   Phase
	percent int
	label   string
}

// NewOrchestrator creates an orchestrator for the installation described by opts.
func NewOrchestrator(opts Options, res Resolver, fetcher Fetcher) *Orchestrator {
	layout := NewLayout(opts.InstallRoot, opts.ClientBinary)
	return &Orchestrator{
		layout:    layout,
		opts:      opts,
		store:     NewStore(layout),
		resolver:  res,
		fetcher:   fetcher,
		extractor: ExtractorFunc(archive.Extract),
		sink:      nopSink{},
		replacer:  func(path string) Replacer { return NewBinaryReplacer(path) },
		logger:    log.WithField("component", "update"),
	}
}

// WithExtractor replaces the zip extractor.
func (o *Orchestrator) WithExtractor(x Extractor) *Orchestrator {
	o.extractor = x
	return o
}

// WithLauncher sets the launcher that starts the client after a successful run.
// Without one the run ends at Done.
func (o *Orchestrator) WithLauncher(l Launcher) *Orchestrator {
	o.launcher = l
	return o
}

// WithProgress sets the progress display.
func (o *Orchestrator) WithProgress(s ProgressSink) *Orchestrator {
	if s != nil {
		o.sink = s
	}
	return o
}

// WithRecorder keeps a history snapshot of every superseded installed state.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// WithReplacer sets how the client binary at path is swapped during commit.
func (o *Orchestrator) WithReplacer(fn func(path string) Replacer) *Orchestrator {
	if fn != nil {
		o.replacer = fn
	}
	return o
}

// OnPhase registers a hook called on every phase transition.
func (o *Orchestrator) OnPhase(fn func(Phase)) *Orchestrator {
	o.onPhase = fn
	return o
}

// Layout returns the installation paths.
func (o *Orchestrator) Layout() Layout {
	return o.layout
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Run performs one update cycle and, on success, launches the client.
// Errors are *PhaseError values naming the phase that failed.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	o.percent, o.label = 0, ""
	o.mu.Unlock()
	o.logger = log.WithFields(log.Fields{
		"component": "update",
		"run_id":    uuid.NewString(),
		"root":      o.layout.Root,
	})

	res := &Result{ClientPath: o.layout.Client()}

	o.enter(PhaseInit)
	if err := os.MkdirAll(o.layout.Root, 0o755); err != nil {
		return res, o.fail(&PersistenceError{Op: "create", Path: o.layout.Root, Err: err})
	}

	timeout := o.opts.LockTimeout
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}
	lock, err := AcquireLock(ctx, o.layout.Lock(), timeout)
	if err != nil {
		return res, o.fail(err)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := lock.Release(); err != nil {
			o.logger.Warnf("failed to release lock: %v", err)
		}
	}
	defer release()

	if err := o.removeArtifacts(); err != nil {
		o.logger.Warnf("stale artifacts from an earlier run remain: %v", err)
	}

	if err := o.update(ctx, res); err != nil {
		if cerr := o.removeArtifacts(); cerr != nil {
			o.logger.Warnf("cleanup after failure incomplete: %v", cerr)
		}
		return res, err
	}

	o.enter(PhaseCleanup)
	o.report(RangeExtract.End, LabelCleanup)
	if err := o.removeArtifacts(); err != nil {
		o.logger.Warnf("cleanup incomplete: %v", err)
	}
	release()

	o.enter(PhaseDone)
	o.report(100, LabelDone)

	if o.launcher != nil {
		if err := o.launcher.Launch(res.ClientPath); err != nil {
			return res, o.fail(err)
		}
		res.Launched = true
	}
	return res, nil
}

func (o *Orchestrator) update(ctx context.Context, res *Result) error {
	o.enter(PhaseResolving)
	o.report(RangeResolve.Start, LabelResolving)
	rel, err := o.resolver.ResolveLatest(ctx)
	if err != nil {
		return o.fail(err)
	}
	res.Release = rel
	latest := rel.Descriptor
	o.report(RangeResolve.End, LabelResolving)

	o.enter(PhaseDeciding)
	installed, err := o.store.Load()
	if err != nil {
		o.logger.Warnf("ignoring unreadable installed state: %v", err)
		installed = nil
	}
	plan := Decide(installed, latest)
	res.Plan = plan
	o.logPlan(rel.Tag, plan)

	client := o.replacer(o.layout.Client())
	if plan.ClientNeedsUpdate || !fileExists(o.layout.Client()) {
		o.enter(PhaseFetchingClient)
		if err := o.fetch(ctx, rel.ClientURL, o.layout.ClientStaging(), o.layout.ClientBinary, RangeClient); err != nil {
			return o.fail(err)
		}
		res.ClientFetched = true
	}
	o.report(RangeClient.End, "")

	var swap *runtimeSwap
	if plan.RuntimeNeedsUpdate || !dirExists(o.layout.RuntimeDir(latest.RuntimeFolderName)) {
		o.enter(PhaseFetchingRuntime)
		archivePath := o.layout.RuntimeArchive()
		if err := o.fetch(ctx, latest.RuntimeURL, archivePath, RuntimeArchiveFile, RangeRuntime); err != nil {
			return o.fail(err)
		}
		if err := o.verifyRuntime(archivePath, latest.RuntimeSignature); err != nil {
			return o.fail(err)
		}
		res.RuntimeFetched = true

		o.enter(PhaseExtractingRuntime)
		swap, err = o.extractRuntime(archivePath, latest.RuntimeFolderName)
		if err != nil {
			return o.fail(err)
		}
	}
	o.report(RangeExtract.End, "")

	o.enter(PhaseCommitting)
	if err := o.commit(res, installed, client, swap); err != nil {
		return o.fail(err)
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, url, dst, name string, r Range) error {
	label := fmt.Sprintf(labelDownloadFormat, name)
	o.report(r.Start, label)

	n, err := o.fetcher.Fetch(ctx, url, dst, func(p download.Progress) {
		if f, ok := p.Fraction(); ok {
			o.report(r.At(f), label)
		}
	})
	if err != nil {
		return err
	}

	o.report(r.End, label)
	o.logger.WithField("url", url).Infof("fetched %s (%s)", name, humanize.Bytes(uint64(n)))
	return nil
}

func (o *Orchestrator) verifyRuntime(path, signature string) error {
	if !o.opts.VerifyRuntimeChecksum {
		return nil
	}
	if !download.LooksLikeSHA256(signature) {
		o.logger.Warnf("runtime signature %q is not a SHA-256 digest, skipping integrity check", signature)
		return nil
	}
	if err := download.VerifySHA256(path, signature); err != nil {
		return err
	}
	o.logger.Debug("runtime archive checksum verified")
	return nil
}

// extractRuntime unpacks the archive into the staging area and promotes it
// into the installation root.
func (o *Orchestrator) extractRuntime(archivePath, folderName string) (*runtimeSwap, error) {
	name := filepath.Base(archivePath)
	o.report(RangeExtract.Start, fmt.Sprintf(labelUnzipFormat, name))

	staged := o.layout.RuntimeStaging()
	if err := os.RemoveAll(staged); err != nil {
		return nil, &archive.ExtractionError{Archive: archivePath, Err: err}
	}
	if err := o.extractor.Extract(archivePath, staged); err != nil {
		return nil, err
	}
	if !dirExists(filepath.Join(staged, folderName)) {
		return nil, &archive.ExtractionError{
			Archive: archivePath,
			Entry:   folderName,
			Err:     errors.New("runtime folder not found in archive"),
		}
	}

	swap, err := promoteRuntime(o.layout, staged)
	if err != nil {
		return nil, &archive.ExtractionError{Archive: archivePath, Err: err}
	}

	o.report(RangeExtract.End, fmt.Sprintf(labelDeleteFormat, name))
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		o.logger.Warnf("failed to delete %s: %v", archivePath, err)
	}
	return swap, nil
}

// commit swaps in the fetched client and, when the plan changed anything,
// replaces the installed state. A failure rolls back every swap made so far.
func (o *Orchestrator) commit(res *Result, installed *descriptor.Descriptor, client Replacer, swap *runtimeSwap) error {
	latest := res.Release.Descriptor

	if res.ClientFetched {
		if err := client.Replace(o.layout.ClientStaging()); err != nil {
			return o.rollback(err, client, swap)
		}
	}

	if !res.Plan.UpToDate() {
		if err := o.store.Commit(latest); err != nil {
			return o.rollback(err, client, swap)
		}
		res.Committed = true
		o.logger.Infof("installed state committed at %s", latest.BuildVersion)

		if installed != nil && o.recorder != nil {
			if err := o.recorder.Record(*installed, latest); err != nil {
				o.logger.Warnf("failed to record history: %v", err)
			}
		}
	}

	if err := client.Discard(); err != nil {
		o.logger.Warnf("failed to remove client backup: %v", err)
	}
	if err := swap.discard(); err != nil {
		o.logger.Warnf("failed to remove replaced runtime: %v", err)
	}
	return nil
}

func (o *Orchestrator) rollback(cause error, client Replacer, swap *runtimeSwap) error {
	var result *multierror.Error
	if err := client.Rollback(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := client.Discard(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := swap.rollback(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		o.logger.Errorf("rollback incomplete: %v", err)
	}
	return cause
}

// removeArtifacts deletes temporary files a run creates. Missing files are fine.
func (o *Orchestrator) removeArtifacts() error {
	paths := []string{
		o.layout.RuntimeArchive(),
		o.layout.StagedState(),
		o.layout.ClientStaging(),
		o.layout.Staging(),
	}
	parts, _ := filepath.Glob(filepath.Join(o.layout.Root, "*"+download.PartSuffix))
	paths = append(paths, parts...)

	var result *multierror.Error
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (o *Orchestrator) logPlan(tag string, plan Plan) {
	logger := o.logger.WithField("tag", tag)
	if plan.FirstRun {
		logger.Info("no installed state, installing everything")
	}
	for _, c := range plan.Changes {
		logger.Infof("%s: installed %q, latest %q", c.Field, c.Installed, c.Latest)
	}
	if plan.UpToDate() {
		logger.Info("installation is up to date")
	}
}

func (o *Orchestrator) enter(p Phase) {
	o.mu.Lock()
	o.phase = p
	hook := o.onPhase
	o.mu.Unlock()

	o.logger.WithField("phase", p.String()).Debug("entering phase")
	if hook != nil {
		hook(p)
	}
}

// fail moves the machine to Failed and wraps err with the phase it happened in.
func (o *Orchestrator) fail(err error) error {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return err
	}
	phase := o.Phase()
	o.enter(PhaseFailed)
	o.logger.WithField("phase", phase.String()).Errorf("update failed: %v", err)
	return &PhaseError{Phase: phase, Err: err}
}

// report forwards progress to the sink, clamped to 0-100 and never decreasing.
// An empty label repeats the previous one.
func (o *Orchestrator) report(percent int, label string) {
	o.mu.Lock()
	if percent > 100 {
		percent = 100
	}
	if percent < o.percent {
		percent = o.percent
	}
	if label == "" {
		label = o.label
	}
	o.percent, o.label = percent, label
	o.mu.Unlock()

	o.sink.Progress(percent, label)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
