package roofctl

import (
	"fmt"
	"strings"

	"github.com/okian/roofline/internal/domain/property"
	"github.com/spf13/cobra"
)

// propertyFlags collects an optional property record from flags.
type propertyFlags struct {
	buildingSize float64
	stories      int
	kind         string
}

func (p *propertyFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.buildingSize, "building-size", 0, "building size in sq ft")
	cmd.Flags().IntVar(&p.stories, "stories", 0, "number of stories")
	cmd.Flags().StringVar(&p.kind, "type", "", "property type, e.g. single_family, condo")
}

// record returns nil when no property flag was given.
func (p *propertyFlags) record() *property.Record {
	if p.buildingSize <= 0 && p.stories <= 0 && p.kind == "" {
		return nil
	}
	rec := &property.Record{Type: property.Normalize(p.kind), Stories: p.stories}
	if p.buildingSize > 0 {
		size := p.buildingSize
		rec.BuildingSizeSqFt = &size
	}
	return rec
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		lat, lng float64
		manual   float64
		props    propertyFlags
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the roof area at a coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := rootOpts.client().Estimate(cmd.Context(), EstimateRequest{
				Latitude:       lat,
				Longitude:      lng,
				Property:       props.record(),
				ManualAreaSqFt: manual,
			})
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), est)
			}
			printEstimate(cmd.OutOrStdout(), est)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude in decimal degrees")
	cmd.Flags().Float64Var(&manual, "manual-area", 0, "known roof area in sq ft; skips imagery")
	props.register(cmd)
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

// NewAddressCommand creates the address command.
func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	var props propertyFlags

	cmd := &cobra.Command{
		Use:   "address <street address>",
		Short: "Geocode an address and estimate its roof area",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rootOpts.client().EstimateByAddress(cmd.Context(), strings.Join(args, " "), props.record())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "address:    %s\n", out.Address.FormattedAddress)
			fmt.Fprintf(w, "location:   %s\n", out.Address.Coordinate.Key())
			if out.Property != nil {
				fmt.Fprintf(w, "property:   %s\n", out.Property.Summary())
			}
			printEstimate(w, out.Estimate)
			return nil
		},
	}
	props.register(cmd)
	return cmd
}
