package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/vshulcz/dslbridge/internal/misc"
)

// setting binds one BridgeConfig field to an optional flag and an environment key.
type setting struct {
	flag   string
	env    string
	usage  string
	set    func(c *BridgeConfig, raw string) error
	isBool bool
}

func stringSetting(flagName, env, usage string, field func(*BridgeConfig) *string) setting {
	return setting{flag: flagName, env: env, usage: usage, set: func(c *BridgeConfig, raw string) error {
		*field(c) = raw
		return nil
	}}
}

func intSetting(flagName, env, usage string, field func(*BridgeConfig) *int) setting {
	return setting{flag: flagName, env: env, usage: usage, set: func(c *BridgeConfig, raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		*field(c) = n
		return nil
	}}
}

func boolSetting(flagName, env, usage string, field func(*BridgeConfig) *bool) setting {
	return setting{flag: flagName, env: env, usage: usage, isBool: true, set: func(c *BridgeConfig, raw string) error {
		b, err := misc.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}}
}

func durationSetting(flagName, env, usage string, field func(*BridgeConfig) *Duration) setting {
	return setting{flag: flagName, env: env, usage: usage, set: func(c *BridgeConfig, raw string) error {
		d, err := misc.ParseSeconds(raw)
		if err != nil {
			return err
		}
		field(c).Duration = d
		return nil
	}}
}

// flagValue records the raw text of a flag so it can be applied after the YAML layer.
type flagValue struct {
	raw    string
	isBool bool
}

func (v *flagValue) String() string { return v.raw }

func (v *flagValue) Set(s string) error {
	v.raw = s
	return nil
}

func (v *flagValue) IsBoolFlag() bool { return v.isBool }

// register declares every setting that has a flag name on fset.
func register(fset *flag.FlagSet, settings []setting) map[string]*flagValue {
	values := make(map[string]*flagValue, len(settings))
	for _, s := range settings {
		if s.flag == "" {
			continue
		}
		v := &flagValue{isBool: s.isBool}
		values[s.flag] = v
		fset.Var(v, s.flag, s.usage)
	}
	return values
}

// apply overlays explicitly passed flags and then non-blank environment values onto cfg.
func apply(cfg *BridgeConfig, fset *flag.FlagSet, values map[string]*flagValue, settings []setting) error {
	passed := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	for _, s := range settings {
		if s.flag != "" && passed[s.flag] {
			if err := s.set(cfg, values[s.flag].raw); err != nil {
				return fmt.Errorf("invalid value %q for flag -%s: %w", values[s.flag].raw, s.flag, err)
			}
		}
	}
	for _, s := range settings {
		raw, ok := misc.LookupEnv(s.env)
		if !ok {
			continue
		}
		if err := s.set(cfg, raw); err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", raw, s.env, err)
		}
	}
	return nil
}
