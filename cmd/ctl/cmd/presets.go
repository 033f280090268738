package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jpfielding/dicomimg.go/pkg/img"
	"github.com/spf13/cobra"
)

// NewPresetsCmd lists the window presets of an image
func NewPresetsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets [file]",
		Short: "Window/level presets",
		Long:  "Lists the window presets of an image: VOI LUT windows and tables, the full dynamic range and the modality presets. The first one is the default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("presets"); path != "" {
				if err := loadPresets(path); err != nil {
					return err
				}
			}
			f, err := openFile(ctx, cmd, sourceArg(cmd, args))
			if err != nil {
				return err
			}
			defer f.Close()
			src, err := openImage(f)
			if err != nil {
				return err
			}
			prPath, _ := cmd.Flags().GetString("pr")
			pr, err := presentationState(prPath, f.Strict)
			if err != nil {
				return err
			}
			frame, _ := cmd.Flags().GetInt("frame")
			s, desc, err := src.samples(frame)
			if err != nil {
				return err
			}
			padding, _ := cmd.Flags().GetBool("padding")
			presets := img.Presets(img.NewAdapter(s, desc), padding, pr)

			out := cmd.OutOrStdout()
			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				return json.NewEncoder(out).Encode(presets)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tWINDOW\tLEVEL\tSHAPE")
			for _, p := range presets {
				fmt.Fprintf(tw, "%s\t%g\t%g\t%s\n", p.Name, p.Window, p.Level, p.Shape.Name())
			}
			return tw.Flush()
		},
	}
	addSourceFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.Int("frame", 0, "Frame whose value range sets the dynamic presets")
	pf.String("pr", "", "Grayscale softcopy presentation state file")
	pf.String("presets", "", "YAML table of modality presets added to the built in ones")
	pf.Bool("padding", true, "Exclude pixel padding from the value range")
	pf.String("format", "text", "output format (text|json)")
	return cmd
}

func loadPresets(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open presets: %w", err)
	}
	defer fh.Close()
	return img.LoadPresets(fh)
}
