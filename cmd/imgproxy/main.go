// Package main provides the entry point for imgproxy, a tool for pushing
// high-resolution images through low-resolution models without losing the
// full-resolution detail.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twardoch/twat-image/internal"
	"github.com/twardoch/twat-image/internal/delta"
	"github.com/twardoch/twat-image/internal/platform/logger"
	"github.com/twardoch/twat-image/internal/upscale"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "\nERROR: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	var verbose bool
	var svc *internal.Service

	root := &cobra.Command{
		Use:           "imgproxy",
		Short:         "Process high-resolution images through low-resolution models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			svc = internal.New(internal.Config{
				Log:   logger.New(),
				Debug: logger.Debug(verbose),
			})
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		splitCmd(&svc),
		composeCmd(&svc),
		mergeCmd(&svc),
		batchSplitCmd(&svc),
	)

	return root.Execute()
}

func splitCmd(svc **internal.Service) *cobra.Command {
	var width, height, proxyPath, processed string
	var refine bool
	var depth int

	cmd := &cobra.Command{
		Use:   "split <input-image>",
		Short: "Downsample an image into a proxy for model processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := internal.SplitRequest{
				Input:     args[0],
				Width:     width,
				Height:    height,
				ProxyPath: proxyPath,
			}

			if processed != "" {
				d, err := parseDepth(depth)
				if err != nil {
					return err
				}
				_, _, err = (*svc).SplitWithProcessed(cmd.Context(), req, processed, refine, d)
				return err
			}

			_, err := (*svc).Split(cmd.Context(), req)
			return err
		},
	}

	cmd.Flags().StringVarP(&width, "width", "W", "", "target width in pixels or percentage (e.g. 960 or 50%)")
	cmd.Flags().StringVarP(&height, "height", "H", "", "target height in pixels or percentage")
	cmd.Flags().StringVar(&proxyPath, "proxy", "", "proxy output path (default <stem>_proxy.png)")
	cmd.Flags().StringVar(&processed, "processed", "", "already-processed proxy; also compose the delta")
	cmd.Flags().BoolVar(&refine, "refine", false, "with --processed, also write a refined delta")
	cmd.Flags().IntVar(&depth, "depth", 8, "delta precision in bits (8 or 16)")
	cmd.MarkFlagRequired("width")
	cmd.MarkFlagRequired("height")

	return cmd
}

func composeCmd(svc **internal.Service) *cobra.Command {
	var deltaPath string
	var refine bool
	var depth int

	cmd := &cobra.Command{
		Use:   "compose <proxy-image> <processed-image>",
		Short: "Encode the delta between a proxy and its processed counterpart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDepth(depth)
			if err != nil {
				return err
			}

			_, err = (*svc).Compose(cmd.Context(), internal.ComposeRequest{
				ProxyPath:     args[0],
				ProcessedPath: args[1],
				DeltaPath:     deltaPath,
				Refine:        refine,
				Depth:         d,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&deltaPath, "delta", "", "delta output path (default <proxy stem>_delta.png)")
	cmd.Flags().BoolVar(&refine, "refine", false, "also write a refined delta for a second corrective pass")
	cmd.Flags().IntVar(&depth, "depth", 8, "delta precision in bits (8 or 16)")

	return cmd
}

func mergeCmd(svc **internal.Service) *cobra.Command {
	var output, refinedDelta, metadata, method, refinedMethod string

	cmd := &cobra.Command{
		Use:   "merge <input-image> <delta-image>",
		Short: "Apply a delta back onto the original high-resolution image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New()

			upscaler, err := upscale.ParseMethod(method, log)
			if err != nil {
				return err
			}

			var refinedUpscaler upscale.Upscaler
			if refinedMethod != "" {
				if refinedUpscaler, err = upscale.ParseMethod(refinedMethod, log); err != nil {
					return err
				}
			}

			_, err = (*svc).Merge(cmd.Context(), internal.MergeRequest{
				Input:            args[0],
				DeltaPath:        args[1],
				OutputPath:       output,
				RefinedDeltaPath: refinedDelta,
				MetadataPath:     metadata,
				Upscaler:         upscaler,
				RefinedUpscaler:  refinedUpscaler,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <stem>_merged.png)")
	cmd.Flags().StringVar(&refinedDelta, "refined-delta", "", "refined delta for a second corrective pass")
	cmd.Flags().StringVar(&metadata, "metadata", "", "geometry sidecar path (default <stem>_proxy_metadata.txt)")
	cmd.Flags().StringVar(&method, "upscale", "basic", `upscale method: "basic" or "cmd(<tool> %i %o)"`)
	cmd.Flags().StringVar(&refinedMethod, "refined-upscale", "", "upscale method for the refined delta (default --upscale)")

	return cmd
}

func batchSplitCmd(svc **internal.Service) *cobra.Command {
	var width, height string

	cmd := &cobra.Command{
		Use:   "batch-split <glob-pattern>",
		Short: "Split every image matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := (*svc).BatchSplit(cmd.Context(), args[0], width, height)
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", result.Failed, result.Succeeded+result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&width, "width", "W", "", "target width in pixels or percentage")
	cmd.Flags().StringVarP(&height, "height", "H", "", "target height in pixels or percentage")
	cmd.MarkFlagRequired("width")
	cmd.MarkFlagRequired("height")

	return cmd
}

func parseDepth(bits int) (delta.Depth, error) {
	switch bits {
	case 8:
		return delta.Depth8, nil
	case 16:
		return delta.Depth16, nil
	}
	return 0, fmt.Errorf("depth must be 8 or 16, got %d", bits)
}
