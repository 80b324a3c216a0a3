/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"

	"github.com/fatih/structs"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const defaultConfig = "~/.config/epi-contentful-sync.yaml"

var (
	// Store the result of binding cobra flags
	Config       string
	ConfigActual string
	Debug        bool
	WithVCR      bool

	ContentfulHost     string
	ContentfulSpace    string
	ContentfulEnv      string
	ContentfulToken    string
	DefaultLocale      string
	ConverterURL       string
	LocalRichText      bool
	Sites              map[string]string
	Locales            []string
	Mode               string
	CheckpointBackend  string
	CheckpointURL      string
	AMQPURL            string
	AMQPExchange       string
	RequestTimeoutSecs int

	ParsedConfig YamlConfig
)

// Environment variables that fill flags still empty after the config file.
var envFallbacks = map[string]string{
	"token":               "SYNC_CONTENTFUL_API_KEY",
	"space":               "SYNC_CONTENTFUL_SPACE_ID",
	"environment":         "SYNC_CONTENTFUL_ENVIRONMENT",
	"default-locale":      "SYNC_CONTENTFUL_DEFAULT_LOCALE",
	"converter-url":       "SYNC_RICH_TEXT_CONVERTER_URL",
	"checkpoint-url":      "SYNC_CHECKPOINT_URL",
	"amqp-url":            "SYNC_AMQP_URL",
	"auth-username":       "SYNC_AUTH_USERNAME",
	"auth-password-hash":  "SYNC_AUTH_PASSWORD_HASH",
	"checkpoint-backend":  "SYNC_CHECKPOINT_BACKEND",
	"contentful-api-host": "SYNC_CONTENTFUL_API_HOST",
}

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "epi-contentful-sync",
	Short: "Copy Episerver travel content into Contentful",
	Long: `
Reads voyages, excursions, ships, programs, ports and destinations from the Episerver market sites,
merges them per locale and writes them to a Contentful space as entries and assets.  Run a single
sync from the command line, or serve the sync routes over HTTP.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("epi-contentful-sync: failed to initialise config: %w", err)
		}
		return nil
	},
}

func init() {
	// Define cobra flags, the default value has the lowest (least significant) precedence
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&Config, "config", "", "config file location (default: "+defaultConfig+", respects EPI_CONTENTFUL_SYNC_CONFIG)")
	pf.BoolVar(&Debug, "debug", false, "display debug output")
	pf.BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to record and replay HTTP traffic")
	pf.StringVar(&ContentfulHost, "contentful-api-host", "", "Content Management API host (default: https://api.contentful.com)")
	pf.StringVar(&ContentfulSpace, "space", "", "Contentful space ID")
	pf.StringVar(&ContentfulEnv, "environment", "master", "Contentful environment")
	pf.StringVar(&ContentfulToken, "token", "", "Contentful management token")
	pf.StringVar(&DefaultLocale, "default-locale", "en-US", "Contentful locale that links, assets and codes are written under")
	pf.StringVar(&ConverterURL, "converter-url", "", "base URL of the html-to-rich-text service")
	pf.BoolVar(&LocalRichText, "local-rich-text", false, "convert HTML in-process instead of calling the converter service")
	pf.StringToStringVar(&Sites, "sites", map[string]string{}, "locale=URL of each Episerver market site (default: every known market)")
	pf.StringSliceVar(&Locales, "locales", []string{}, "only read these locales")
	pf.StringVar(&Mode, "mode", "merge", "how existing entries are written: merge or replace")
	pf.StringVar(&CheckpointBackend, "checkpoint-backend", "memory", "where record checksums are kept: memory, mongo or postgres")
	pf.StringVar(&CheckpointURL, "checkpoint-url", "", "connection string of the checkpoint database")
	pf.StringVar(&AMQPURL, "amqp-url", "", "publish job events to this AMQP broker")
	pf.StringVar(&AMQPExchange, "amqp-exchange", "", "exchange for job events (default: epi-contentful-sync.jobs)")
	pf.IntVar(&RequestTimeoutSecs, "request-timeout", 120, "seconds each source or Contentful request may take")
}

func initializeConfig(cmd *cobra.Command) error {
	// A missing .env is fine, most deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("epi-contentful-sync: couldn't load .env: %w", err)
	}

	explicit := true
	if Config == "" {
		// Did the user provide an ENV?
		envConfig := os.Getenv("EPI_CONTENTFUL_SYNC_CONFIG")
		if envConfig != "" {
			Config = envConfig
		} else {
			Config = defaultConfig
			explicit = false
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("epi-contentful-sync: unable to expand homedir: %w", err)
	}
	ConfigActual = config

	if _, err := os.Stat(ConfigActual); errors.Is(err, os.ErrNotExist) {
		if explicit {
			fmt.Printf("Couldn't read config file %s, does it exist?  Override with --config.\n", ConfigActual)
			return fmt.Errorf("epi-contentful-sync: specified config file does not exist: %w", err)
		}
		debugLog("No config file at %s, using flags and environment only\n", ConfigActual)
		ConfigActual = ""
	} else {
		yamlFile, err := os.ReadFile(ConfigActual)
		if err != nil {
			return fmt.Errorf("epi-contentful-sync: error reading config file: %w", err)
		}

		// I'd like to bark if a user sets a key we don't recognise:
		if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
			return fmt.Errorf("epi-contentful-sync: issue parsing config file: %w", err)
		}

		if err := bindFlags(cmd, ParsedConfig); err != nil {
			return fmt.Errorf("epi-contentful-sync: failed to bind flags: %w", err)
		}
	}

	return bindEnv(cmd, os.LookupEnv)
}

type YamlConfig struct {
	Debug         *bool `yaml:"debug"`
	WithVCR       *bool `yaml:"with-vcr"`
	LocalRichText *bool `yaml:"local-rich-text"`
	AlwaysSync    *bool `yaml:"always-sync"`
	Shuffle       *bool `yaml:"shuffle"`

	ContentfulHost    string `yaml:"contentful-api-host"`
	Space             string `yaml:"space"`
	Environment       string `yaml:"environment"`
	Token             string `yaml:"token"`
	DefaultLocale     string `yaml:"default-locale"`
	ConverterURL      string `yaml:"converter-url"`
	Mode              string `yaml:"mode"`
	CheckpointBackend string `yaml:"checkpoint-backend"`
	CheckpointURL     string `yaml:"checkpoint-url"`
	AMQPURL           string `yaml:"amqp-url"`
	AMQPExchange      string `yaml:"amqp-exchange"`
	Listen            string `yaml:"listen"`
	AuthUsername      string `yaml:"auth-username"`
	AuthPasswordHash  string `yaml:"auth-password-hash"`
	URIFixes          string `yaml:"uri-fixes"`

	RequestTimeout int `yaml:"request-timeout"`

	Locales []string `yaml:"locales"`

	Sites map[string]string `yaml:"sites"`
}

// Bind each cobra flag the user didn't set to its value from the config file.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("epi-contentful-sync: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// e.g. `list unmigrated` has no `listen` flag, but the config file may well set it.
			continue
		}
		if cmd.Flags().Changed(key) {
			continue
		}

		switch field.Kind() {
		case reflect.Ptr:
			// YamlConfig only uses pointers for bools.
			b, ok := field.Value().(*bool)
			if !ok {
				return fmt.Errorf("epi-contentful-sync: found unrecognised field: %+v", field)
			}
			if b != nil {
				if err := cmd.Flags().Set(key, fmt.Sprintf("%v", *b)); err != nil {
					return fmt.Errorf("epi-contentful-sync: bad value for %s: %w", key, err)
				}
			}

		case reflect.String:
			s, ok := field.Value().(string)
			if !ok {
				return fmt.Errorf("epi-contentful-sync: found unrecognised field: %+v", field)
			}
			if s != "" {
				if err := cmd.Flags().Set(key, s); err != nil {
					return fmt.Errorf("epi-contentful-sync: bad value for %s: %w", key, err)
				}
			}

		case reflect.Int:
			n, ok := field.Value().(int)
			if !ok {
				return fmt.Errorf("epi-contentful-sync: found unrecognised field: %+v", field)
			}
			if n != 0 {
				if err := cmd.Flags().Set(key, strconv.Itoa(n)); err != nil {
					return fmt.Errorf("epi-contentful-sync: bad value for %s: %w", key, err)
				}
			}

		case reflect.Slice:
			ss, ok := field.Value().([]string)
			if !ok {
				return fmt.Errorf("epi-contentful-sync: found unrecognised field: %+v", field)
			}
			for _, s := range ss {
				// yes, repeatedly calling Set() appends to the slice...
				cmd.Flags().Set(key, s)
			}

		case reflect.Map:
			m, ok := field.Value().(map[string]string)
			if !ok {
				return fmt.Errorf("epi-contentful-sync: found unrecognised field: %+v", field)
			}
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				// ...and so does a string-to-string flag.
				cmd.Flags().Set(key, k+"="+m[k])
			}

		default:
			return fmt.Errorf("epi-contentful-sync: found unrecognised field: %+v", field)
		}
	}

	return nil
}

// bindEnv fills flags that are still unset from their environment variables.
func bindEnv(cmd *cobra.Command, lookup func(string) (string, bool)) error {
	for key, env := range envFallbacks {
		flag := cmd.Flag(key)
		if flag == nil || flag.Changed {
			continue
		}
		value, ok := lookup(env)
		if !ok || value == "" {
			continue
		}
		if err := cmd.Flags().Set(key, value); err != nil {
			return fmt.Errorf("epi-contentful-sync: bad value in %s: %w", env, err)
		}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("epi-contentful-sync: execution error: %w", err)
	}

	return nil
}
