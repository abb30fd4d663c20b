// Package log defines the event logging interface for the Pulse stack.
//
// All layers (transport framing, wire codec, client lifecycle) report
// through the same Logger interface using typed events. Applications
// plug in their own sink: the SlogAdapter bridges events into a
// standard log/slog logger, MultiLogger fans out to several sinks, and
// NoopLogger disables logging entirely.
//
// Loggers are always injected; there is no package-level global.
package log
