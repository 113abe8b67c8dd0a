// Package config overlays a config file and environment variables onto a command's flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FANLENS"

// envFallbacks lists conventional variables consulted for a flag when its FANLENS_ variable is unset.
var envFallbacks = map[string]string{
	"api-key":   "OPENAI_API_KEY",
	"cache-dsn": "DATABASE_URL",
}

// Load decodes the flags registered on fs into out (a pointer to a struct with mapstructure tags
// named after the flags). Precedence, highest first: flags set on the command line, FANLENS_*
// environment variables (dashes become underscores), fallback variables such as OPENAI_API_KEY,
// the file named by --config, then flag defaults.
func Load(fs *pflag.FlagSet, out any) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("config: bind flags: %w", err)
	}
	for key, fallback := range envFallbacks {
		if fs.Lookup(key) == nil {
			continue
		}
		own := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(key, own, fallback); err != nil {
			return fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", f.Value.String(), err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}
