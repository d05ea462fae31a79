// Package roofctl implements the roofctl command line client.
package roofctl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultBaseURL = "http://localhost:9080"
	defaultTimeout = 60 * time.Second
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	BaseURL string
	Timeout time.Duration
	Format  string // "json" | "text"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) client() *Client {
	return NewClient(o.BaseURL, o.Timeout)
}

// NewRootCommand creates the roofctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "roofctl",
		Short: "roofctl talks to a roofline server",
		Long:  "Request roof area estimates by coordinate or address, and run batch estimation jobs.",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "url", defaultBaseURL, "base URL of the roofline server")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaultTimeout, "per-request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewEstimateCommand(opts))
	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewJobCommand(opts))

	return cmd
}
