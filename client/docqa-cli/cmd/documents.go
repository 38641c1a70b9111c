package cmd

import (
	"github.com/spf13/cobra"
)

func newUploadCmd(opts *options) *cobra.Command {
	var up uploadOptions
	uploadCmd := &cobra.Command{
		Use:   "upload [file-path...]",
		Short: "Upload PDF documents or JSON question sets",
		Long: `Upload one or more files. PDFs are chunked and indexed; JSON arrays of objects are stored as question sets.
Use --id once per file, in order, to name the uploads; unnamed files get "<name>-<content hash prefix>".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().upload(args, up)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	uploadCmd.Flags().StringSliceVar(&up.IDs, "id", nil, "file identity, repeated once per file")
	uploadCmd.Flags().IntVar(&up.ChunkSize, "chunk-size", 0, "override the server chunk size for these files")
	uploadCmd.Flags().IntVar(&up.ChunkOverlap, "chunk-overlap", -1, "override the chunk overlap, 0 for none (requires --chunk-size; default chunk-size/5)")
	return uploadCmd
}

func newDocsCmd(opts *options) *cobra.Command {
	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage ingested documents",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().listDocuments()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete documents and their chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().deleteDocuments(args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	docsCmd.AddCommand(listCmd, deleteCmd)
	return docsCmd
}

func newQuestionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List stored question-set records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().listQuestions()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}
