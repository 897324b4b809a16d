package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var (
	factCategory   string
	factDifficulty string
	factCount      int
	searchPage     int
	searchLimit    int
	trendingLimit  int
)

var factCmd = &cobra.Command{
	Use:   "fact",
	Short: "Generate and browse facts",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, backend, err := newAPIClient(serverURL).Generate(cmd.Context(), generateBody{
			Category:   factCategory,
			Difficulty: factDifficulty,
		})
		if err != nil {
			return err
		}
		printFact(cmd.OutOrStdout(), f)
		fmt.Fprintf(cmd.OutOrStdout(), "  backend: %s\n", backend)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate several facts at once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newAPIClient(serverURL).Batch(cmd.Context(), generateBody{
			Category:   factCategory,
			Difficulty: factDifficulty,
			Count:      factCount,
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, f := range out.Facts {
			printFact(w, f)
		}
		fmt.Fprintf(w, "generated %d of %d\n", out.Metadata.Generated, out.Metadata.Requested)
		for _, e := range out.Metadata.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
		return nil
	},
}

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Show a random stored fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newAPIClient(serverURL).Random(cmd.Context(), factCategory)
		if err != nil {
			return err
		}
		printFact(cmd.OutOrStdout(), f)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [fact-id]",
	Short: "Show a fact by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newAPIClient(serverURL).Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printFact(cmd.OutOrStdout(), f)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like [fact-id]",
	Short: "Like a fact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		likes, err := newAPIClient(serverURL).Like(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Fact liked successfully (%d likes)\n", likes)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored facts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newAPIClient(serverURL).Search(cmd.Context(), args[0], factCategory, factDifficulty, searchPage, searchLimit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, f := range out.Facts {
			printFact(w, f)
		}
		p := out.Pagination
		fmt.Fprintf(w, "page %d of %d (%d total)\n", p.Current, p.Total, p.TotalFacts)
		return nil
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show the most liked facts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		facts, err := newAPIClient(serverURL).Trending(cmd.Context(), trendingLimit)
		if err != nil {
			return err
		}
		for _, f := range facts {
			printFact(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fact statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := newAPIClient(serverURL).Stats(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "total facts:     %d\n", stats.TotalFacts)
		fmt.Fprintf(w, "generated today: %d\n", stats.GeneratedToday)
		cats := make([]string, 0, len(stats.CategoryCounts))
		for c := range stats.CategoryCounts {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(w, "  %-12s %d\n", c, stats.CategoryCounts[c])
		}
		return nil
	},
}

func printFact(w io.Writer, f fact) {
	fmt.Fprintf(w, "[%s/%s] %s\n", f.Category, f.Metadata.Complexity, f.Text)
	fmt.Fprintf(w, "  id: %s  likes: %d  source: %s\n", f.ID, f.Likes, f.Source)
}

func init() {
	rootCmd.AddCommand(factCmd)
	factCmd.AddCommand(generateCmd, batchCmd, randomCmd, getCmd, likeCmd, searchCmd, trendingCmd, statsCmd)

	for _, c := range []*cobra.Command{generateCmd, batchCmd, randomCmd, searchCmd} {
		c.Flags().StringVarP(&factCategory, "category", "c", "", "fact category")
	}
	for _, c := range []*cobra.Command{generateCmd, batchCmd, searchCmd} {
		c.Flags().StringVarP(&factDifficulty, "difficulty", "d", "", "easy, medium or hard")
	}
	batchCmd.Flags().IntVarP(&factCount, "count", "n", 25, "number of facts to generate")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "results per page")
	trendingCmd.Flags().IntVar(&trendingLimit, "limit", 10, "number of facts")
}
