package ktail

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-yaml"
	"k8s.io/apimachinery/pkg/labels"
)

// Defaults applied by DefaultConfig.
const (
	DefaultMaxPods        = 10
	DefaultPollIntervalMs = 250
	DefaultTailLines      = 20
)

// Config is the user-facing configuration as read from
// command-line flags or a YAML file. It is validated and
// frozen into a Filter before the Reconciler starts.
type Config struct {
	// Labels are label selectors; a pod must match all
	// of them.
	Labels []string `yaml:"labels"`

	// Names are pod name fragments; a pod must contain
	// at least one of them.
	Names []string `yaml:"names"`

	// MaxPods caps the number of pods followed at once.
	MaxPods int `yaml:"maxPods"`

	// PollIntervalMs is the pause between two polls.
	PollIntervalMs int `yaml:"pollIntervalMs"`

	// TailLines is the number of existing lines read
	// back when a stream opens.
	TailLines int `yaml:"tailLines"`

	// Since is a relative duration such as "5m".
	Since string `yaml:"since"`

	// SinceTime is an RFC3339 timestamp.
	SinceTime string `yaml:"sinceTime"`

	// Namespace restricts listing to one namespace.
	// Empty means the kubeconfig default.
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns a Config holding the default
// limits and no filters.
func DefaultConfig() Config {
	return Config{
		MaxPods:        DefaultMaxPods,
		PollIntervalMs: DefaultPollIntervalMs,
		TailLines:      DefaultTailLines,
	}
}

// LoadConfig decodes a YAML document from r on top of
// base. Keys absent from the document keep the value
// they have in base. An empty document returns base.
func LoadConfig(r io.Reader, base Config) (Config, error) {
	const errCtx = "loading config"

	cfg := base

	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}

		return Config{}, fmt.Errorf(
			"%s: decoding yaml: %w", errCtx, err,
		)
	}

	return cfg, nil
}

// Since selects where a stream starts reading history.
// At most one of Duration and Time is set.
type Since struct {
	Duration time.Duration
	Time     time.Time
}

// IsZero reports whether no start point is set.
func (s Since) IsZero() bool {
	return s.Duration == 0 && s.Time.IsZero()
}

// ParseSince builds a Since from the relative and the
// absolute form. Giving both is an error.
func ParseSince(since, sinceTime string) (Since, error) {
	const errCtx = "parsing since"

	if since != "" && sinceTime != "" {
		return Since{}, fmt.Errorf(
			"%s: %w: since and sinceTime are"+
				" mutually exclusive",
			errCtx, ErrInvalidConfig,
		)
	}

	var out Since

	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil || d <= 0 {
			return Since{}, fmt.Errorf(
				"%s: %w: since %q must be a positive"+
					" duration",
				errCtx, ErrInvalidConfig, since,
			)
		}

		out.Duration = d
	}

	if sinceTime != "" {
		t, err := time.Parse(time.RFC3339, sinceTime)
		if err != nil {
			return Since{}, fmt.Errorf(
				"%s: %w: sinceTime %q must be RFC3339: %w",
				errCtx, ErrInvalidConfig, sinceTime, err,
			)
		}

		out.Time = t
	}

	return out, nil
}

// Filter is the validated, immutable form of a Config.
type Filter struct {
	Labels       []string
	Names        []string
	MaxPods      int
	PollInterval time.Duration
	TailLines    int64
	Since        Since
}

// Filter validates c and returns the matching Filter.
// Every failure wraps ErrInvalidConfig.
func (c Config) Filter() (Filter, error) {
	const errCtx = "validating config"

	if len(c.Labels) == 0 && len(c.Names) == 0 {
		return Filter{}, fmt.Errorf(
			"%s: %w: need at least one name or label"+
				" to filter on",
			errCtx, ErrInvalidConfig,
		)
	}

	for _, l := range c.Labels {
		if _, err := labels.Parse(l); err != nil {
			return Filter{}, fmt.Errorf(
				"%s: %w: label %q: %w",
				errCtx, ErrInvalidConfig, l, err,
			)
		}
	}

	if c.MaxPods <= 0 {
		return Filter{}, fmt.Errorf(
			"%s: %w: maxPods must be positive, got %d",
			errCtx, ErrInvalidConfig, c.MaxPods,
		)
	}

	if c.PollIntervalMs <= 0 {
		return Filter{}, fmt.Errorf(
			"%s: %w: pollIntervalMs must be positive,"+
				" got %d",
			errCtx, ErrInvalidConfig, c.PollIntervalMs,
		)
	}

	if c.TailLines < 0 {
		return Filter{}, fmt.Errorf(
			"%s: %w: tailLines must not be negative,"+
				" got %d",
			errCtx, ErrInvalidConfig, c.TailLines,
		)
	}

	since, err := ParseSince(c.Since, c.SinceTime)
	if err != nil {
		return Filter{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	return Filter{
		Labels:  append([]string(nil), c.Labels...),
		Names:   append([]string(nil), c.Names...),
		MaxPods: c.MaxPods,
		PollInterval: time.Duration(c.PollIntervalMs) *
			time.Millisecond,
		TailLines: int64(c.TailLines),
		Since:     since,
	}, nil
}
