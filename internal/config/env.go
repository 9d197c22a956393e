package config

import (
	"os"
	"strings"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "EMUCTL_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays EMUCTL_* environment variables using os.LookupEnv.
func (c *Config) ApplyEnv() {
	c.ApplyEnvFrom(os.LookupEnv)
}

// ApplyEnvFrom overlays environment variables found by lookup:
//
//	EMUCTL_LOG_LEVEL          log.level
//	EMUCTL_REMOTE_LISTEN      remote.listen
//	EMUCTL_SCRIPTS_OVERRIDES  scripts.overrides
//	EMUCTL_SCRIPTS_INBOX      scripts.inbox
//	EMUCTL_STRICT             dispatcher.strict
//
// Empty string values are treated as set, except for EMUCTL_STRICT which
// must parse as a boolean.
func (c *Config) ApplyEnvFrom(lookup LookupFunc) {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvPrefix + "REMOTE_LISTEN"); ok {
		c.Remote.Listen = v
	}
	if v, ok := lookup(EnvPrefix + "SCRIPTS_OVERRIDES"); ok {
		c.Scripts.Overrides = v
	}
	if v, ok := lookup(EnvPrefix + "SCRIPTS_INBOX"); ok {
		c.Scripts.Inbox = v
	}
	if v, ok := lookup(EnvPrefix + "STRICT"); ok {
		if b, ok := parseBool(v); ok {
			c.Dispatcher.Strict = b
		}
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}
