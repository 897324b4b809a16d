package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Run the heuristic text analyser on the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAPIClient(serverURL).Analyze(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "sentiment:      %s\n", a.Sentiment)
		fmt.Fprintf(w, "complexity:     %.2f\n", a.Complexity)
		fmt.Fprintf(w, "readability:    %.2f\n", a.ReadabilityScore)
		fmt.Fprintf(w, "keywords:       %s\n", strings.Join(a.Keywords, ", "))
		fmt.Fprintf(w, "related topics: %s\n", strings.Join(a.RelatedTopics, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
