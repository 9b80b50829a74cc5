// Package cli provides the back-office operator console: an interactive
// shell and the `serve` command that exposes the same session over HTTP.
//
// App wires configuration, the local session database, the backend client,
// the auth gateway and the session manager. Typical flow: restore the stored
// session, let the backend confirm it, then dispatch commands. Every command
// typed counts as activity for the idle timer; when it fires the operator is
// signed out and told why.
//
// Commands are built by NewRootCommand and run by Execute.
package cli
