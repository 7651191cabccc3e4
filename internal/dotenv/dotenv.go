// Package dotenv loads a .env file from the working directory when present.
package dotenv

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// Load reads .env into the process environment. A missing file is not an
// error; the bot is routinely configured through the environment alone.
func Load() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}
