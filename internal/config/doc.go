// Package config loads, normalizes, and validates proofbuild configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as ELEVENLABS_API_KEY. The Config type
// centralizes every knob the daemon and CLI need so the object store,
// generators, and poller are wired from one validated value.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
