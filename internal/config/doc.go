// Package config assembles the immutable run configuration of gradientbot.
//
// Values come from three sources, applied in order: built-in defaults,
// an optional YAML file overriding dashboard URLs, selectors and phrases,
// and the process environment (APP_USER, APP_PASS, PROXY, ALLOW_DEBUG).
// CLI flags are applied by the command layer on top.
package config
