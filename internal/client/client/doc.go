// Package client contains the client-side building blocks that talk to the
// back-office REST API and bootstrap local persistence.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): Login,
//     Register, Me, UpdateProfile, ChangePassword, CreateAdmin and Logout.
//  2. A concrete JSON-over-HTTP implementation (see HTTPClient) that
//     attaches the bearer token returned by a TokenSource, reports in-flight
//     calls to a LoadingNotifier, and maps failures to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) opening the
//     sqlite database and applying the embedded goose migrations.
//
// # Error Handling
//
// Server rejections are returned as *APIError carrying the HTTP status and
// the server's message verbatim; 401 and 403 unwrap to ErrUnauthorized.
// Transport failures wrap ErrUnavailable. IsAdminDenied recognises the
// backend refusing a request for lack of admin privileges.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. Every call takes a context.Context
// and honours cancellation; a cancelled call returns the context error
// rather than ErrUnavailable.
package client
