package integration

import (
	"context"
	"fmt"

	"github.com/coder/quartz"

	"github.com/jwulff/gridboard/internal/domain"
)

// StaticType is the type name of the built-in static handler.
const StaticType = "static"

// Static serves fixed values stored in the integration config under
// "values". It needs no network access, which makes it useful for
// placeholders and demos.
type Static struct {
	Clock quartz.Clock
}

// NewStatic creates a static handler using the real clock.
func NewStatic() *Static {
	return &Static{Clock: quartz.NewReal()}
}

func (s *Static) Type() string { return StaticType }

func (s *Static) values(cfg domain.Config) (map[string]any, error) {
	raw, ok := cfg["values"]
	if !ok {
		return map[string]any{}, nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return nil, configError("values must be an object, got %T", raw)
	}
	return values, nil
}

// TestConnection only checks that the config is well formed.
func (s *Static) TestConnection(_ context.Context, cfg domain.Config) (Result, error) {
	values, err := s.values(cfg)
	if err != nil {
		return Result{OK: false, Message: err.Error()}, nil
	}
	return Result{OK: true, Message: fmt.Sprintf("%d values configured", len(values))}, nil
}

func (s *Static) GetData(_ context.Context, cfg domain.Config, metric string) (*Data, error) {
	values, err := s.values(cfg)
	if err != nil {
		return nil, err
	}
	v, ok := values[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	return &Data{Metric: metric, Value: v, FetchedAt: s.Clock.Now().UTC()}, nil
}

func (s *Static) Capabilities() []Capability {
	return []Capability{
		{Metric: "<key>", Description: "any key of config.values"},
	}
}
