// Package server hosts the Fiber HTTP service and its middleware chain: request
// IDs, access logging, panic recovery and optional CORS. Every GET outside the
// /-/ diagnostics prefix is handed to the delivery engine, which resolves the
// path and produces either file bytes, a throttled stream or a directory page.
// Keep exports narrow and accept explicit dependencies so tests can build the
// app with a temporary root and a counting filesystem.
package server
