// Package fingerprint decides whether a target runs WordPress by scoring
// independent signals found on the homepage and the REST API index.
package fingerprint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/0x6d61/wpleech/internal/engine"
	"github.com/0x6d61/wpleech/internal/transport"
)

// Signal is one WordPress indicator with a fixed confidence weight.
type Signal interface {
	// Name is the label recorded in DetectionResult.DetectedBy.
	Name() string

	// Weight is added to the confidence when the signal matches.
	Weight() int

	// Match inspects the homepage and may send its own probes. An error
	// means the signal could not be evaluated.
	Match(ctx context.Context, req *SignalRequest) (*SignalResult, error)
}

// SignalRequest contains everything a signal may look at.
type SignalRequest struct {
	Target   engine.ScanTarget
	Homepage *transport.Response
	Client   transport.Client
}

// SignalResult is the outcome of evaluating one signal.
type SignalResult struct {
	Matched bool
	Version string // WordPress version, if the signal reveals it
}

// Detector fingerprints targets as WordPress.
type Detector struct {
	client   transport.Client
	registry *Registry
	logger   *slog.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) DetectorOption {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a detector using the built-in signals.
func NewDetector(client transport.Client, opts ...DetectorOption) *Detector {
	d := &Detector{
		client:   client,
		registry: NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect fetches the target root (following redirects) and evaluates every
// signal. The post-redirect URL is reported as FinalURL and used as the
// base for follow-up probes. A root fetch failure leaves confidence at 0
// and sets Error; signal failures become warnings.
func (d *Detector) Detect(ctx context.Context, target engine.ScanTarget) engine.DetectionResult {
	result := engine.DetectionResult{
		DetectedBy: []string{},
		FinalURL:   target.URL(),
	}

	follow := true
	req := transport.Get(target.URL())
	req.FollowRedirects = &follow

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		result.Error = err.Error()
		d.logger.Warn("homepage request failed", "target", target.URL(), "error", err)
		return result
	}

	if resp.URL != "" {
		if canonical, err := target.WithURL(resp.URL); err == nil {
			target = canonical
			result.FinalURL = canonical.URL()
		}
	}

	sreq := &SignalRequest{
		Target:   target,
		Homepage: resp,
		Client:   d.client,
	}
	for _, sig := range d.registry.Signals() {
		res, err := sig.Match(ctx, sreq)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", sig.Name(), err))
			d.logger.Debug("signal not evaluated", "signal", sig.Name(), "error", err)
			continue
		}
		if res == nil || !res.Matched {
			continue
		}
		result.AddSignal(sig.Name(), sig.Weight())
		if res.Version != "" && result.WPVersion == "" {
			result.WPVersion = res.Version
		}
	}

	result.Decide()
	d.logger.Info("wordpress detection finished",
		"target", result.FinalURL,
		"confidence", result.Confidence,
		"signals", strings.Join(result.DetectedBy, ", "),
	)
	return result
}
