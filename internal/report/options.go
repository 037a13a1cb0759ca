package report

import (
	"fmt"
	"sort"
	"strings"
)

const (
	ProfileTypes = "types"
	ProfileUsers = "users"
	ProfileFull  = "full"
)

// Options selects which sub-sections the generator renders and bounds the
// sampled queries. The zero value renders neither interaction aggregation,
// only the count and the recent listing; use ProfileOptions for the named
// profiles.
type Options struct {
	TopTypes        bool // global top-N interaction types
	UserTypes       bool // counts per (user, type) pair
	RecentDetails   bool // include details in the recent interaction listing
	StateTimestamps bool
	StatePreview    bool

	TopTypesLimit int
	RecentLimit   int
	PreviewBytes  int
}

var profiles = map[string]Options{
	ProfileTypes: {
		TopTypes: true,
	},
	ProfileUsers: {
		UserTypes:       true,
		RecentDetails:   true,
		StateTimestamps: true,
		StatePreview:    true,
	},
	ProfileFull: {
		TopTypes:        true,
		UserTypes:       true,
		RecentDetails:   true,
		StateTimestamps: true,
		StatePreview:    true,
	},
}

// ProfileOptions returns the options for a named profile with default limits.
func ProfileOptions(name string) (Options, error) {
	opts, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Options{}, fmt.Errorf("unknown report profile %q (valid: %s)", name, strings.Join(Profiles(), ", "))
	}
	return opts.withDefaults(), nil
}

// WithProfile switches o to the sections of the named profile while keeping
// its limits.
func (o Options) WithProfile(name string) (Options, error) {
	p, err := ProfileOptions(name)
	if err != nil {
		return Options{}, err
	}
	if o.TopTypesLimit > 0 {
		p.TopTypesLimit = o.TopTypesLimit
	}
	if o.RecentLimit > 0 {
		p.RecentLimit = o.RecentLimit
	}
	if o.PreviewBytes > 0 {
		p.PreviewBytes = o.PreviewBytes
	}
	return p, nil
}

// Profiles returns the valid profile names, sorted.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o Options) withDefaults() Options {
	if o.TopTypesLimit <= 0 {
		o.TopTypesLimit = 10
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = 5
	}
	if o.PreviewBytes <= 0 {
		o.PreviewBytes = 32
	}
	return o
}
