package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/dmitrijs2005/gophstore/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads the dotenv file named by -env-file (or ./.env when present)
// without overriding variables already set, then overlays every tagged field
// whose variable is defined. Unset variables leave fields untouched.
func parseEnv(config *Config) {
	path := flagx.EnvFileFlag(os.Args[1:])
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
