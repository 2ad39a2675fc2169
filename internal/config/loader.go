package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load. A double
// underscore separates nesting levels: SQLSENSE_ENGINE__FUZZY_THRESHOLD.
const EnvPrefix = "SQLSENSE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"sqlsense.yaml", "sqlsense.yml"}

// flagKeys maps command line flags onto config keys. Flags not listed
// here are command arguments and never reach the config.
var flagKeys = map[string]string{
	"catalog":        "catalog.path",
	"source":         "catalog.source",
	"dsn":            "catalog.dsn",
	"schemas":        "catalog.schemas",
	"store":          "catalog.store",
	"snapshot":       "catalog.snapshot",
	"watch":          "catalog.watch",
	"max-join-depth": "engine.max_join_depth",
	"threshold":      "engine.fuzzy_threshold",
	"limit":          "engine.max_candidates",
	"log-level":      "log_level",
	"output":         "output",
}

// findConfigFile returns the explicit path if given, otherwise the first
// sqlsense.yaml|yml found searching upward from dir.
func findConfigFile(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range configFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load reads configuration. cfgFile may be empty to search from the
// working directory; flags may be nil.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return LoadFrom(cwd, cfgFile, flags)
}

// LoadFrom is Load with an explicit starting directory for the config
// file search and relative path resolution.
func LoadFrom(dir, cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	used := findConfigFile(cfgFile, dir)
	root := dir
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
		if abs, err := filepath.Abs(used); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables
	// Transform: SQLSENSE_ENGINE__MAX_JOIN_DEPTH -> engine.max_join_depth
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	var flagPaths map[string]bool
	if flags != nil {
		flagPaths = make(map[string]bool)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			if key == "catalog.path" || key == "catalog.store" {
				flagPaths[key] = true
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	// 6. Resolve paths. Flag paths are relative to the working directory,
	// file and default paths to the config file's directory.
	cfg.Catalog.Path = resolvePath(cfg.Catalog.Path, root, flagPaths["catalog.path"])
	cfg.Catalog.Store = resolvePath(cfg.Catalog.Store, root, flagPaths["catalog.store"])
	cfg.Catalog.DSN = expandEnvVars(cfg.Catalog.DSN)
	cfg.Catalog.Source = strings.ToLower(strings.TrimSpace(cfg.Catalog.Source))
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Output = strings.ToLower(cfg.Output)

	return &cfg, nil
}

func resolvePath(path, root string, fromFlag bool) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if fromFlag {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(root, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}
