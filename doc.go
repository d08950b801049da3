// Package trino implements the client-side statement-execution engine for
// Trino's paged, HTTP-based query protocol.
//
// A caller submits a SQL statement through a Client, which drives the
// server-provided chain of continuation URIs to completion. Pages are
// fetched ahead of consumption by a background PageQueue and delivered in
// order to a single-consumer PageStream, while a SessionState accumulates
// catalog/schema/property mutations carried on response headers.
//
// This package implements only the core engine described by the wire
// protocol: statement submission, page pagination, session mutation, and
// typed value decoding. It does not implement a database/sql driver, an
// authentication plugin, TLS certificate provisioning, or a SQL parser;
// those are external collaborators the engine consumes through small
// interfaces (see Auth and Config).
package trino
