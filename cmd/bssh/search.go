package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bssh/internal/rank"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search connections and show their ranking",
	Long: `Search stored connections and print the ranked result list with each
candidate's match tier and score breakdown. Useful for seeing why connect
picks what it picks.

Examples:
  bssh search web
  bssh search webprod --json`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

// SearchResponse is the JSON shape of the search command.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    rank.Mode      `json:"mode"`
	Results []SearchResult `json:"results"`
}

// SearchResult is one ranked connection in search output.
type SearchResult struct {
	Name      string             `json:"name"`
	Host      string             `json:"host"`
	Tags      []string           `json:"tags,omitempty"`
	Tier      string             `json:"tier,omitempty"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) {
	a := mustApp()
	query := args[0]

	res, err := a.engine.Search(newContext(), query)
	if err != nil {
		fail(err)
	}

	resp := SearchResponse{
		Query:   query,
		Mode:    res.Mode,
		Results: make([]SearchResult, 0, len(res.Items)),
	}
	for _, it := range res.Items {
		r := SearchResult{
			Name:  it.Connection.Name,
			Host:  it.Connection.Host,
			Tags:  it.Connection.Tags,
			Score: it.Score,
		}
		if res.Mode == rank.ModeRanked {
			r.Tier = it.Tier.String()
			r.Breakdown = it.Breakdown
		}
		resp.Results = append(resp.Results, r)
	}

	if jsonFlag {
		printJSON(resp)
		return
	}

	if res.Mode == rank.ModeRecent {
		fmt.Printf("No match for '%s'; showing recently used connections.\n\n", query)
		for i, it := range res.Items {
			fmt.Printf("  %d. %s (%s)  %s\n", i+1, it.Connection.Name, it.Connection.Host, formatAgo(it.Connection.LastUsed))
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tHOST\tTIER\tSCORE\tLAST USED")
	for i, it := range res.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.3f\t%s\n",
			i+1,
			truncate(it.Connection.Name, 28),
			truncate(it.Connection.Host, 36),
			it.Tier,
			it.Score,
			formatAgo(it.Connection.LastUsed),
		)
	}
	w.Flush()
}
