// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader on top of koanf.
//
// Priority (highest to lowest):
//
//  1. Environment variables (MTAA_SECTION_KEY)
//  2. .env file entries, which never override the real environment
//  3. Configuration file (YAML)
//  4. Default values already present in the target struct
//
// Environment names are matched against the koanf tags of the target, so
// MTAA_SESSION_MAX_PER_USER resolves to session.max_per_user.
//
// Watcher reports changes to watched files so callers can re-apply
// reloadable settings such as the log level.
package confloader
