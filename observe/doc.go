// Package observe provides observability primitives for task orchestration.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The run package wires a Middleware around every
// task it dispatches; the sandbox and retry packages log through the same
// Logger interface.
package observe
