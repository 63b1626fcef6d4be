// Package config loads and watches the peirce configuration file.
//
// Load(path) starts from Default() (./peirce.db, port 8080, info/text
// logging, 1000 solver iterations, the N={3,5,10,16} n={1,2} m={1} table),
// overlays the YAML file when path is non-empty, then applies the
// PEIRCE_DB_PATH, PEIRCE_PORT and PEIRCE_LOG_LEVEL environment variables
// and validates the result.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on write and
// hands each valid Config to onChange. The serve command uses it to swap
// the default table grid and solver bound without a restart.
package config
