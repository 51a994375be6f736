// Package shutdown provides graceful shutdown for the server.
//
// Components register named hooks as they start. On SIGINT or SIGTERM (or
// when the wait context ends) the hooks run in reverse order of
// registration under one shared timeout, so the component started last
// stops first.
package shutdown
