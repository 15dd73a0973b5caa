package fingerprint

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/0x6d61/wpleech/internal/transport"
)

// Signal names and weights.
const (
	SignalPaths     = "wp-content/wp-includes paths"
	SignalGenerator = "meta generator tag"
	SignalREST      = "REST API endpoint"

	WeightPaths     = 30
	WeightGenerator = 40
	WeightREST      = 30
)

// generatorPattern captures the version from the WordPress meta generator tag.
var generatorPattern = regexp.MustCompile(`(?i)<meta name="generator" content="WordPress ([0-9.]+)"`)

// pathSignal matches core asset directories referenced by the homepage.
type pathSignal struct{}

func (pathSignal) Name() string { return SignalPaths }
func (pathSignal) Weight() int  { return WeightPaths }

func (pathSignal) Match(_ context.Context, req *SignalRequest) (*SignalResult, error) {
	body := req.Homepage.BodyString()
	return &SignalResult{
		Matched: strings.Contains(body, "/wp-content/") || strings.Contains(body, "/wp-includes/"),
	}, nil
}

// generatorSignal matches the meta generator tag and reads the version.
type generatorSignal struct{}

func (generatorSignal) Name() string { return SignalGenerator }
func (generatorSignal) Weight() int  { return WeightGenerator }

func (generatorSignal) Match(_ context.Context, req *SignalRequest) (*SignalResult, error) {
	m := generatorPattern.FindStringSubmatch(req.Homepage.BodyString())
	if m == nil {
		return &SignalResult{}, nil
	}
	return &SignalResult{Matched: true, Version: m[1]}, nil
}

// restSignal probes the REST API index.
type restSignal struct{}

func (restSignal) Name() string { return SignalREST }
func (restSignal) Weight() int  { return WeightREST }

func (restSignal) Match(ctx context.Context, req *SignalRequest) (*SignalResult, error) {
	resp, err := req.Client.Do(ctx, transport.Get(req.Target.Join("/wp-json/")))
	if err != nil {
		return nil, fmt.Errorf("probe /wp-json/: %w", err)
	}
	return &SignalResult{
		Matched: resp.OK() && strings.Contains(resp.BodyString(), "namespaces"),
	}, nil
}
