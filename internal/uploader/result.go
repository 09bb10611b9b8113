package uploader

import (
	"slices"

	"github.com/aliskhannn/safe-uploader/internal/model"
)

// Mode selects how a run reports errors.
type Mode int

const (
	// Raise stops the run at the first error and returns it.
	Raise Mode = iota
	// Collect records every error in the RunResult and keeps going where checks are independent.
	Collect
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Collect {
		return "collect"
	}
	return "raise"
}

// RunResult is the outcome of one upload run. It is never modified once returned.
type RunResult struct {
	uploadedFilePath  string
	uploadedFilePaths []string
	errors            []error
	realURL           string
	profile           model.Profile
	hasProfile        bool
}

// UploadedFilePath returns the path of the placed file, or "" when nothing was placed.
func (r RunResult) UploadedFilePath() string {
	return r.uploadedFilePath
}

// UploadedFilePaths returns every produced path: the placed file first, then each thumbnail.
func (r RunResult) UploadedFilePaths() []string {
	return slices.Clone(r.uploadedFilePaths)
}

// Errors returns the errors collected in Collect mode.
func (r RunResult) Errors() []error {
	return slices.Clone(r.errors)
}

// Messages returns the collected errors as human-readable strings.
func (r RunResult) Messages() []string {
	msgs := make([]string, 0, len(r.errors))
	for _, err := range r.errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// RealURL returns the location reported by a custom placement strategy.
func (r RunResult) RealURL() string {
	return r.realURL
}

// Profile returns the executed profile with defaults merged in.
// The boolean is false when the run stopped before a profile was resolved.
func (r RunResult) Profile() (model.Profile, bool) {
	return r.profile, r.hasProfile
}

// Placed reports whether the file reached a final location.
func (r RunResult) Placed() bool {
	return r.uploadedFilePath != "" || r.realURL != ""
}

// Failed reports whether any error was collected.
func (r RunResult) Failed() bool {
	return len(r.errors) > 0
}

// run accumulates the state of one upload run before it is frozen into a RunResult.
type run struct {
	mode   Mode
	result RunResult
	err    error // first error in Raise mode
}

func newRun(mode Mode) *run {
	return &run{mode: mode}
}

// fail reports err according to the run mode.
func (r *run) fail(err error) {
	if r.mode == Collect {
		r.result.errors = append(r.result.errors, err)
		return
	}
	if r.err == nil {
		r.err = err
	}
}

func (r *run) setProfile(p model.Profile) {
	r.result.profile = p
	r.result.hasProfile = true
}

func (r *run) produced(path string) bool {
	return slices.Contains(r.result.uploadedFilePaths, path)
}

func (r *run) addPath(path string) {
	r.result.uploadedFilePaths = append(r.result.uploadedFilePaths, path)
}

func (r *run) done() (RunResult, error) {
	return r.result, r.err
}

// Collector accumulates the results of repeated runs, whatever their mode.
type Collector struct {
	results []RunResult
	errs    []error
}

// Add records the outcome of one run.
func (c *Collector) Add(res RunResult, err error) {
	c.results = append(c.results, res)
	c.errs = append(c.errs, res.errors...)
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Results returns every recorded result in call order.
func (c *Collector) Results() []RunResult {
	return slices.Clone(c.results)
}

// Errors returns every error of every recorded run in call order.
func (c *Collector) Errors() []error {
	return slices.Clone(c.errs)
}

// Paths returns every path produced by the recorded runs.
func (c *Collector) Paths() []string {
	var paths []string
	for _, res := range c.results {
		paths = append(paths, res.uploadedFilePaths...)
	}
	return paths
}
