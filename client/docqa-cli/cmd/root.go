package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

type options struct {
	server  string
	timeout time.Duration
}

func (o *options) client() *apiClient {
	return newAPIClient(o.server, o.timeout)
}

// NewRootCmd builds the docqa-cli command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "docqa-cli",
		Short:         "A CLI client for the document QA service",
		Long:          `A command-line interface for uploading PDFs and question sets, asking questions and managing the document index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("DOCQA_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", server, "base URL of the docqa service (env DOCQA_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout")

	rootCmd.AddCommand(
		newUploadCmd(opts),
		newAskCmd(opts),
		newDocsCmd(opts),
		newQuestionsCmd(opts),
		newIndexCmd(opts),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on error.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// printJSON indents a JSON response body for the terminal.
func printJSON(w io.Writer, data []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		_, werr := w.Write(data)
		return werr
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(w)
	return err
}
