// Package config reads gbp.conf files and turns them into validated,
// typed options per command.
//
// It handles:
//   - Locating the configuration files of a repository
//   - Merging [DEFAULT] and per command sections
//   - Letting explicitly set command line flags override file values
package config
