package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coolbeans/rdgmed/pkg/config"
	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rdgmed",
		Short: "Graph-described resource mediation",
		Long: `rdgmed books resources from providers that describe their request
format as an RDF template (RDG).

The mediator fills a provider's template with a booking request (RIG),
reads the provider's answer (RRG) and proposes booking dates. The provider
matches requests against a catalog of cottages. Vocabularies of unknown
providers can be aligned to the mediator's own.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default rdgmed.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("pretty", false, "Human readable log output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(alignCmd())
	rootCmd.AddCommand(candidatesCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd
}

// loadConfig reads the config file named by --config and applies the global
// flag overrides on top. overrides may carry command specific values.
func loadConfig(cmd *cobra.Command, overrides *config.Config) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if overrides == nil {
		overrides = &config.Config{}
	}
	overrides.Log.Level, _ = cmd.Flags().GetString("log-level")
	overrides.Log.Pretty, _ = cmd.Flags().GetBool("pretty")
	cfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
}

func namespaces(cfg *config.Config) vocab.Namespaces {
	return vocab.Default().WithResource(cfg.Provider.BaseURL)
}

func readGraphFile(path string) (*store.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := store.ParseTurtle(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func formatGraph(g *store.Graph, format string) (string, error) {
	switch format {
	case "turtle", "ttl":
		return store.SerializeTurtle(g), nil
	case "jsonld", "json-ld":
		data, err := store.SerializeJSONLD(g)
		return string(data), err
	case "rdfxml", "xml":
		return store.SerializeRDFXML(g)
	default:
		return "", fmt.Errorf("unknown format %q (use turtle, jsonld or rdfxml)", format)
	}
}
