/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// effectiveConfig is what the persistent flags resolved to, in config file shape.
type effectiveConfig struct {
	Debug             bool              `yaml:"debug"`
	WithVCR           bool              `yaml:"with-vcr"`
	LocalRichText     bool              `yaml:"local-rich-text"`
	ContentfulHost    string            `yaml:"contentful-api-host,omitempty"`
	Space             string            `yaml:"space"`
	Environment       string            `yaml:"environment"`
	Token             string            `yaml:"token"`
	DefaultLocale     string            `yaml:"default-locale"`
	ConverterURL      string            `yaml:"converter-url"`
	Mode              string            `yaml:"mode"`
	CheckpointBackend string            `yaml:"checkpoint-backend"`
	CheckpointURL     string            `yaml:"checkpoint-url,omitempty"`
	AMQPURL           string            `yaml:"amqp-url,omitempty"`
	AMQPExchange      string            `yaml:"amqp-exchange,omitempty"`
	RequestTimeout    int               `yaml:"request-timeout"`
	Locales           []string          `yaml:"locales,omitempty"`
	Sites             map[string]string `yaml:"sites,omitempty"`
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Output current config",
	Long: `
Is something not working for you?  Have a look whether your config is as you expect.  Secrets are
masked.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Note, you can only talk about persistent flags here.  Command-specific ones won't be
		// visible.
		fmt.Printf("# Config file: %s\n", ConfigActual)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()

		return enc.Encode(effectiveConfig{
			Debug:             Debug,
			WithVCR:           WithVCR,
			LocalRichText:     LocalRichText,
			ContentfulHost:    ContentfulHost,
			Space:             ContentfulSpace,
			Environment:       ContentfulEnv,
			Token:             mask(ContentfulToken),
			DefaultLocale:     DefaultLocale,
			ConverterURL:      ConverterURL,
			Mode:              Mode,
			CheckpointBackend: CheckpointBackend,
			CheckpointURL:     mask(CheckpointURL),
			AMQPURL:           mask(AMQPURL),
			AMQPExchange:      AMQPExchange,
			RequestTimeout:    RequestTimeoutSecs,
			Locales:           Locales,
			Sites:             Sites,
		})
	},
}

// mask keeps the first four characters of a secret.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

func init() {
	configCmd.AddCommand(showCmd)
}
