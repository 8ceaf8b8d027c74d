package featureflag

import (
	"sort"
	"strings"
)

// FeatureFlag is a lookup map of the features enabled for a run.
type FeatureFlag map[Flag]struct{}

// New returns feature flags initialized with a list of flag names. Names are
// trimmed and upper cased, empty ones are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether a flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs function `do` if flag is set in the feature flags.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs function `do` if flag is not set in the feature flags.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// List returns the set flags, sorted.
func (f FeatureFlag) List() []string {
	flags := make([]string, 0, len(f))
	for flag := range f {
		flags = append(flags, string(flag))
	}
	sort.Strings(flags)
	return flags
}
