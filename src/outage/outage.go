// Package outage fetches planned power outage windows from regional
// distribution operators.
package outage

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const fetchTimeout = 15 * time.Second

// Window is a planned outage within one day. EndHour may be 24 for a
// window that runs to midnight.
type Window struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// String renders the window as HH:MM-HH:MM
func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}

func (w Window) startMinutes() int { return w.StartHour*60 + w.StartMinute }
func (w Window) endMinutes() int   { return w.EndHour*60 + w.EndMinute }

// Duration is the length of the window
func (w Window) Duration() time.Duration {
	return time.Duration(w.endMinutes()-w.startMinutes()) * time.Minute
}

// Contains reports whether the time of day of t falls inside the window
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.startMinutes() && m < w.endMinutes()
}

// Next returns the window that contains t or, failing that, the first one
// starting after t. ok is false when nothing is left today.
func Next(windows []Window, t time.Time) (w Window, ok bool) {
	m := t.Hour()*60 + t.Minute()
	for _, candidate := range windows {
		if candidate.endMinutes() <= m {
			continue
		}
		if !ok || candidate.startMinutes() < w.startMinutes() {
			w, ok = candidate, true
		}
	}
	return w, ok
}

// Provider fetches today's outage windows for one configured group
type Provider interface {
	Name() string
	Group() string
	FetchWindows(ctx context.Context) ([]Window, error)
}

type OptionFunc func(*options)

type options struct {
	httpClient *http.Client
	baseURL    string
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) OptionFunc {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithBaseURL points the provider at a different API host
func WithBaseURL(baseURL string) OptionFunc {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

func buildOptions(defaultBase string, opts []OptionFunc) options {
	o := options{
		httpClient: &http.Client{Timeout: fetchTimeout},
		baseURL:    defaultBase,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Settings selects and parameterises a provider
type Settings struct {
	Provider string // lvivoblenergo, yasno or none
	Group    string
	RegionID int
	DSOID    int
}

// New builds the provider named in s. It returns nil for "none".
func New(s Settings, opts ...OptionFunc) (Provider, error) {
	switch s.Provider {
	case "", ProviderLvivoblenergo:
		return NewLvivoblenergo(s.Group, opts...), nil
	case ProviderYasno:
		return NewYasno(s.Group, s.RegionID, s.DSOID, opts...), nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown outage provider %q", s.Provider)
	}
}

// Provider names as written to OUTAGE_PROVIDER
const (
	ProviderLvivoblenergo = "lvivoblenergo"
	ProviderYasno         = "yasno"
	ProviderNone          = "none"
)
