// Package dotenv seeds the process environment from a .env file. Command
// entrypoints call Load before flag parsing so flag defaults can come from
// the environment.
package dotenv

import "equilibrium-api/pkg/confkit"

// Load hydrates os.Environ from the nearest .env file, walking up from the
// source tree. Only the first call across the process does work. Set
// NO_DOTENV=1 to skip, DOTENV_OVERLOAD=1 to let .env win over existing
// variables.
func Load() {
	confkit.LoadDotenvOnce()
}
