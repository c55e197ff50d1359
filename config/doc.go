// Package config loads the process bootstrap settings from a YAML file and
// environment variables: listen address, logging, circuit breaker, health
// checking, configuration sources, dispatch and metrics. These settings are
// read once at startup; runtime values such as the upstream location come
// from the configuration pipeline instead.
package config
