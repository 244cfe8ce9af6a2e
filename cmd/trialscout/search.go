// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialscout/internal/engine"
	"github.com/pdiddy/trialscout/internal/render"
	"github.com/pdiddy/trialscout/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [narrative...]",
	Short: "Search publications, trials and experts",
	Long: `Search detects conditions in the narrative (or takes them from --terms),
expands them with clinical synonyms, and queries every enabled provider
concurrently. With neither a narrative nor --terms, the stored profile for
--caller is used.

Location filtering keeps records whose city and country match --city and
--country; records without a location are always kept. --global disables
location filtering.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSlice("terms", nil, "condition terms (comma-separated)")
	searchCmd.Flags().String("city", "", "filter by city")
	searchCmd.Flags().String("country", "", "filter by country")
	searchCmd.Flags().Bool("global", false, "disable location filtering")
	searchCmd.Flags().Int("max-results", 0, "maximum merged results (default from config)")
	searchCmd.Flags().StringSlice("sources", nil, "providers to query: pubmed, trials, orcid (default all enabled)")
	searchCmd.Flags().String("caller", "", "caller id for stored-profile fallback")
	searchCmd.Flags().String("format", "table", "output format: table, json, csl")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "json", "csl":
	default:
		return fmt.Errorf("unknown format %q (want table, json or csl)", format)
	}

	req, err := searchRequestFromFlags(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp, err := a.engine.Search(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return render.FormatJSON(render.NewDocument(resp.Result, resp.Conditions, resp.Query.Terms), out)
	case "csl":
		return render.FormatCSL(resp.Result, out)
	}
	if len(resp.Conditions) > 0 {
		fmt.Fprintf(out, "Conditions: %s\n\n", strings.Join(resp.Conditions, ", "))
	}
	render.FormatTable(resp.Result, out)
	return nil
}

func searchRequestFromFlags(cmd *cobra.Command, args []string) (engine.Request, error) {
	terms, _ := cmd.Flags().GetStringSlice("terms")
	city, _ := cmd.Flags().GetString("city")
	country, _ := cmd.Flags().GetString("country")
	global, _ := cmd.Flags().GetBool("global")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	names, _ := cmd.Flags().GetStringSlice("sources")
	caller, _ := cmd.Flags().GetString("caller")

	req := engine.Request{
		CallerID:   caller,
		Text:       strings.Join(args, " "),
		Terms:      terms,
		Global:     global,
		MaxResults: maxResults,
	}
	if loc := (types.Location{City: city, Country: country}); !loc.IsZero() {
		req.Location = &loc
	}
	for _, name := range names {
		kind, err := types.ParseSourceKind(name)
		if err != nil {
			return engine.Request{}, err
		}
		req.Sources = append(req.Sources, kind)
	}
	return req, nil
}
