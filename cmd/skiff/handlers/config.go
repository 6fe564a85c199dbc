package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skiffhq/skiff/internal/config"
)

// ConfigSetOptions carries the config set command's arguments.
type ConfigSetOptions struct {
	ConfigPath  string
	Environment string
	Key         string
	Secret      bool
	Stdin       io.Reader
}

// ConfigSet writes one configuration override. The value comes from the
// SKIFF_VALUE environment variable or stdin - never from a positional
// argument, so it cannot leak into the process list. Well-known secret
// keys are encrypted regardless of the --secret flag.
func ConfigSet(opts ConfigSetOptions) error {
	cfg, err := newConfigStore(opts.ConfigPath)
	if err != nil {
		return err
	}

	value, err := readValue(opts.Stdin)
	if err != nil {
		return err
	}

	classification := config.Plain
	if opts.Secret || config.IsSecretKey(opts.Key) {
		classification = config.Secret
	}
	if err := cfg.Set(opts.Environment, opts.Key, value, classification); err != nil {
		return err
	}

	label := "value"
	if classification == config.Secret {
		label = "secret"
	}
	fmt.Fprintf(stdout, "Set %s %q for environment %q\n", label, opts.Key, opts.Environment)
	return nil
}

// ConfigGetOptions carries the config get command's arguments.
type ConfigGetOptions struct {
	ConfigPath  string
	Environment string
	Key         string
	Reveal      bool
}

// ConfigGet prints one resolved value. Secrets stay masked unless the
// caller explicitly asserts --reveal.
func ConfigGet(opts ConfigGetOptions) error {
	cfg, err := newConfigStore(opts.ConfigPath)
	if err != nil {
		return err
	}
	entry, err := cfg.Get(opts.Environment, opts.Key, opts.Reveal)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, entry.Value)
	return nil
}

// ConfigListOptions carries the config list command's arguments.
type ConfigListOptions struct {
	ConfigPath  string
	Environment string
}

// ConfigList prints the environment's overrides with secrets masked.
func ConfigList(opts ConfigListOptions) error {
	cfg, err := newConfigStore(opts.ConfigPath)
	if err != nil {
		return err
	}
	entries, err := cfg.List(opts.Environment)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(stdout, "No overrides set for environment %q\n", opts.Environment)
		return nil
	}
	for _, entry := range entries {
		marker := ""
		if entry.Classification == config.Secret {
			marker = dimStyle.Render(" (secret)")
		}
		fmt.Fprintf(stdout, "%-24s %s%s\n", entry.Key, entry.Value, marker)
	}
	return nil
}

// readValue takes the value from SKIFF_VALUE, falling back to stdin.
func readValue(stdin io.Reader) (string, error) {
	if value, ok := os.LookupEnv("SKIFF_VALUE"); ok {
		return value, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read value from stdin: %w", err)
	}
	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", fmt.Errorf("no value provided: set SKIFF_VALUE or pipe the value on stdin")
	}
	return value, nil
}
