// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package config provides layered configuration loading for the AutoWL
pipeline using koanf: built-in defaults, overlaid by an optional YAML file,
overlaid by environment variables.

# Layers

	defaults (defaultConfig)  →  YAML file (findConfigFile)  →  env vars (envTransformFunc)

Later layers win. Call Load to build a *Config, then Validate it before
using it — Load does not validate, since some callers (tests, tooling)
want a Config without a fully populated environment.

# See Also

  - spec.md §6: the external interface this package's keys implement.
  - internal/vault: consumes DataProtection.KeyDirectory.
  - internal/store: consumes ConnectionStrings.Default and DatabaseProvider.
*/
package config
