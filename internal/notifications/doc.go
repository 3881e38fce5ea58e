// Package notifications delivers run outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Run completion and
// failure messages can be toggled independently; start events are accepted
// but never pushed.
package notifications
