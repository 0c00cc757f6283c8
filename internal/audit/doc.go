// Package audit defines the audit event model and the sink implementations
// shared between the engine's dispatcher and library consumers.
//
// Sinks must tolerate concurrent Emit calls. The engine never blocks a caller
// on a sink: buffering and drop accounting live in the root-package dispatcher.
package audit
