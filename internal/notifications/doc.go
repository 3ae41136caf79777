// Package notifications delivers project events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event type
// can be switched off independently. Delivery failures are returned to the
// caller, which logs them; they never influence pipeline state.
package notifications
