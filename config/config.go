// Package config loads cmd/pullflate's optional YAML settings file and
// applies it to any command-line flags the user left unset.
package config

import (
	"flag"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

// Settings is the typed shape of pullflate's YAML config file. Zero
// values mean "not set in the file"; ApplyToFlags only touches flags
// the caller didn't already pass on the command line.
type Settings struct {
	Span      int    `yaml:"span"`
	LogLevel  string `yaml:"loglevel"`
	LogFormat string `yaml:"logformat"`
}

// Parse unmarshals raw YAML into a Settings value.
func Parse(raw []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// ApplyToFlags sets any flag in fs that was not already set on the
// command line to the matching field of s, by name (span, loglevel,
// logformat). This adapts yamlutil.SetFlagsFromYaml's "unmarshal into
// a map, then fill in whatever the command line left unset" precedence
// rule to a typed struct instead of an untyped map[string]string.
func (s Settings) ApplyToFlags(fs *flag.FlagSet) error {
	values := map[string]string{}
	if s.Span != 0 {
		values["span"] = fmt.Sprintf("%d", s.Span)
	}
	if s.LogLevel != "" {
		values["loglevel"] = s.LogLevel
	}
	if s.LogFormat != "" {
		values["logformat"] = s.LogFormat
	}

	alreadySet := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { alreadySet[f.Name] = true })

	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if alreadySet[f.Name] {
			return
		}
		name := strings.ToLower(f.Name)
		val, ok := values[name]
		if !ok {
			return
		}
		if serr := fs.Set(f.Name, val); serr != nil {
			err = fmt.Errorf("config: invalid value %q for -%s: %v", val, f.Name, serr)
		}
	})
	return err
}
