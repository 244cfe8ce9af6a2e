// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialscout/internal/conditions"
	"github.com/pdiddy/trialscout/pkg/types"
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions [text...]",
	Short: "List known conditions or detect them in text",
	Long: `Without arguments, conditions lists the condition registry with its
trigger phrases. With text, it prints the conditions detected in the text;
--expand also prints the synonym-expanded search terms.`,
	RunE: runConditions,
}

func init() {
	conditionsCmd.Flags().Bool("expand", false, "print synonym-expanded search terms")
	conditionsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(conditionsCmd)
}

func runConditions(cmd *cobra.Command, args []string) error {
	expand, _ := cmd.Flags().GetBool("expand")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	text := strings.TrimSpace(strings.Join(args, " "))
	tags := conditions.Registry()
	if text != "" {
		tags = conditions.Extract(text)
	}
	var terms []string
	if expand && text != "" {
		terms = conditions.Expand(conditions.Names(tags))
	}

	if jsonOutput {
		if tags == nil {
			tags = []types.ConditionTag{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Conditions []types.ConditionTag `json:"conditions"`
			Terms      []string             `json:"terms,omitempty"`
		}{tags, terms})
	}

	if len(tags) == 0 {
		fmt.Fprintln(out, "No known conditions found.")
		return nil
	}
	for _, tag := range tags {
		fmt.Fprintf(out, "%-24s  %s\n", tag.Name, strings.Join(tag.Triggers, ", "))
	}
	if len(terms) > 0 {
		fmt.Fprintf(out, "\nSearch terms: %s\n", strings.Join(terms, ", "))
	}
	return nil
}
