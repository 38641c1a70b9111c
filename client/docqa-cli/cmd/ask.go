package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type source struct {
	ChunkID  string  `json:"chunk_id"`
	FileID   string  `json:"file_id"`
	FileName string  `json:"file_name"`
	Score    float32 `json:"score"`
}

type answer struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Retrieval string   `json:"retrieval"`
	Sources   []source `json:"sources"`
	Cached    bool     `json:"cached"`
}

func newAskCmd(opts *options) *cobra.Command {
	var (
		topK        int
		showSources bool
	)
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ans, err := opts.client().ask(strings.Join(args, " "), topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Answer)
			if ans.Retrieval == "unavailable" {
				fmt.Fprintln(out, "\n(warning: the document index was unavailable; the answer is not grounded in your documents)")
			}
			if showSources && len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range ans.Sources {
					name := s.FileName
					if name == "" {
						name = s.FileID
					}
					fmt.Fprintf(out, "  - %s [%s] score=%.3f\n", name, s.ChunkID, s.Score)
				}
			}
			return nil
		},
	}
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (server default when 0)")
	askCmd.Flags().BoolVar(&showSources, "sources", true, "print the chunks that supported the answer")
	return askCmd
}
