// Package telem defines the client boundary of the time-series telemetry
// backend: channels, frames, ranges and the streaming reader/writer.
//
// Backends live in sub-packages: mqtt talks to a broker, memory is an
// in-process hub.
package telem
