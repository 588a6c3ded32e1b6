// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Workflow code depends only on the simple Service interface, so
// alternative transports slot in without touching the pipeline.
package notifications
