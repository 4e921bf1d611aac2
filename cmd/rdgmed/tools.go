package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/coolbeans/rdgmed/pkg/align"
	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/config"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/provider"
	"github.com/coolbeans/rdgmed/pkg/query"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
)

func alignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align <rdg-url|file>",
		Short: "Align a provider template's vocabulary to the reference template",
		Long: `Align compares every request term of the reference template with the
terms of a candidate template and lists the candidates by similarity.

Example:
  rdgmed align http://127.0.0.1:8000/rdg
  rdgmed align hotel-rdg.ttl --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			save, _ := cmd.Flags().GetBool("save")
			top, _ := cmd.Flags().GetInt("top")

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			svc, err := newMediatorService(cfg, newLogger(cfg), metrics.New())
			if err != nil {
				return err
			}

			var alignment align.Alignment
			if source := args[0]; strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
				alignment, err = svc.Align(cmd.Context(), source)
				if err != nil {
					return err
				}
			} else {
				candidate, err := readGraphFile(source)
				if err != nil {
					return err
				}
				alignment = svc.AlignGraph(candidate)
			}

			out := cmd.OutOrStdout()
			printAlignment(out, alignment, top)
			if !save {
				return nil
			}

			path, err := svc.SaveAlignment(alignment.Selections())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nSaved %d correspondences to %s\n", len(alignment.Selections()), path)
			return nil
		},
	}

	cmd.Flags().Bool("save", false, "Save the best match of every term as an alignment file")
	cmd.Flags().Int("top", 3, "Candidates shown per reference term (0 = all)")
	return cmd
}

func printAlignment(w io.Writer, alignment align.Alignment, top int) {
	if alignment.Len() == 0 {
		fmt.Fprintln(w, "The reference template has no vocabulary to align.")
		return
	}
	for _, entry := range alignment.Entries {
		fmt.Fprintf(w, "%s\n", entry.Reference.Name)
		if len(entry.Matches) == 0 {
			fmt.Fprintln(w, "  no match")
			continue
		}
		matches := entry.Matches
		if top > 0 && len(matches) > top {
			matches = matches[:top]
		}
		for _, m := range matches {
			fmt.Fprintf(w, "  %.2f  %s\n", m.Score, m.Candidate.ID())
		}
	}
}

func candidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List the booking dates a request window allows",
		Long: `Candidates enumerates every start date within maxShiftDays of the
requested start on which a stay of the given duration fits an availability
period.

Example:
  rdgmed candidates --start 2023-07-01 --duration 5 --shift 2 \
      --from 2023-06-30 --to 2023-07-20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startFlag, _ := cmd.Flags().GetString("start")
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			duration, _ := cmd.Flags().GetInt("duration")
			shift, _ := cmd.Flags().GetInt("shift")

			start, err := availability.ParseDate("start", startFlag)
			if err != nil {
				return err
			}
			if shift > booking.MaxShiftDays {
				return fmt.Errorf("--shift must be at most %d", booking.MaxShiftDays)
			}
			window, err := availability.NewWindow(start, shift)
			if err != nil {
				return err
			}
			if duration < 1 {
				return errors.New("--duration must be at least 1")
			}

			// without an availability period every date in the window is free
			from, to := window.Earliest, window.Latest.AddDays(duration-1)
			if fromFlag != "" {
				if from, err = availability.ParseDate("from", fromFlag); err != nil {
					return err
				}
			}
			if toFlag != "" {
				if to, err = availability.ParseDate("to", toFlag); err != nil {
					return err
				}
			}
			interval, err := availability.NewInterval(from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			candidates := availability.Candidates(window, duration, interval)
			if len(candidates) == 0 {
				fmt.Fprintf(out, "No %d day stay fits %s to %s within %d days of %s\n",
					duration, interval.Start, interval.End, shift, start)
				return nil
			}
			for i, c := range candidates {
				fmt.Fprintf(out, "%d. %s to %s (%s)\n", i+1, c.Start, c.End, c.Label)
			}
			return nil
		},
	}

	cmd.Flags().String("start", "", "Requested start date (yyyy-mm-dd)")
	cmd.Flags().Int("duration", 1, "Stay length in days")
	cmd.Flags().Int("shift", 0, "Days the start may move either way")
	cmd.Flags().String("from", "", "First available date (default: window start)")
	cmd.Flags().String("to", "", "Last available date (default: end of the latest stay)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Replace a template's empty typed literals with sentinels",
		Long: `Normalize rewrites a Turtle template so every empty integer becomes 0
and every empty date or dateTime becomes the epoch, which makes the template
a well-typed graph. With --reverse the sentinels are blanked again, as they
are on a request graph sent to a provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reverse, _ := cmd.Flags().GetBool("reverse")
			format, _ := cmd.Flags().GetString("format")

			g, err := readGraphFile(args[0])
			if err != nil {
				return err
			}
			if reverse {
				g = template.Denormalize(g)
			} else {
				g = template.Normalize(g)
			}
			text, err := formatGraph(g, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().Bool("reverse", false, "Blank sentinel literals instead")
	cmd.Flags().StringP("format", "f", "turtle", "Output format: turtle, jsonld, rdfxml")
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with provider catalogs",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random cottage catalog",
		Long: `Generate writes a catalog of random cottages as Turtle. The same seed
always produces the same catalog.

Example:
  rdgmed catalog generate --count 100 --seed 7 --out cottages.ttl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetUint64("seed")
			center, _ := cmd.Flags().GetString("center")
			spread, _ := cmd.Flags().GetInt("spread")
			output, _ := cmd.Flags().GetString("out")

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if count < 1 {
				return errors.New("--count must be at least 1")
			}

			opts := provider.DefaultGenerateOptions()
			opts.Count = count
			opts.Seed = seed
			opts.Spread = spread
			if center != "" {
				if opts.Center, err = civil.ParseDate(center); err != nil {
					return fmt.Errorf("--center: %w", err)
				}
			}

			turtle := store.SerializeTurtle(provider.GenerateCatalog(namespaces(cfg), opts))
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), turtle)
				return nil
			}
			if err := os.WriteFile(output, []byte(turtle), 0o644); err != nil {
				return fmt.Errorf("writing catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d cottages to %s\n", count, output)
			return nil
		},
	}

	defaults := provider.DefaultGenerateOptions()
	generate.Flags().Int("count", defaults.Count, "Number of cottages")
	generate.Flags().Uint64("seed", defaults.Seed, "Random seed")
	generate.Flags().String("center", "", "Date availability clusters around (default 2023-07-01)")
	generate.Flags().Int("spread", defaults.Spread, "Days a period may start before or after the center")
	generate.Flags().StringP("out", "o", "", "Output file (default stdout)")

	queryCmd := &cobra.Command{
		Use:   "query <sparql>",
		Short: "Run a SELECT query against a catalog",
		Long: `Query runs a SPARQL SELECT over the configured catalog, or over the
generated sample when none is configured.

Example:
  rdgmed catalog query --catalog cottages.ttl \
      "PREFIX cot: <http://users.jyu.fi/~kumapmxw/cottage-ontology.owl#>
       SELECT ?c ?city WHERE { ?c cot:cityName ?city } ORDER BY ?city"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogFile, _ := cmd.Flags().GetString("catalog")
			format, _ := cmd.Flags().GetString("format")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			overrides := &config.Config{}
			overrides.Provider.Catalog = catalogFile
			cfg, err := loadConfig(cmd, overrides)
			if err != nil {
				return err
			}
			catalog, err := loadProviderCatalog(cfg)
			if err != nil {
				return err
			}

			q, err := query.ParseQuery(args[0])
			if err != nil {
				return err
			}
			result, err := query.NewExecutor(catalog.Graph(), query.WithTimeout(timeout)).
				ExecuteWithContext(cmd.Context(), q, nil)
			if err != nil {
				return err
			}
			text, err := result.Format(query.OutputFormat(format))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	queryCmd.Flags().String("catalog", "", "Catalog Turtle file (default: configured catalog or generated sample)")
	queryCmd.Flags().String("format", "table", "Output format: table, json, csv")
	queryCmd.Flags().Duration("timeout", 30*time.Second, "Query timeout")

	cmd.AddCommand(generate)
	cmd.AddCommand(queryCmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			path := config.DefaultFile
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
