package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/jpfielding/dicomimg.go/pkg/img"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
	"github.com/spf13/cobra"
)

// NewRenderCmd writes one frame as an 8 bit image
func NewRenderCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a frame to PNG/JPEG",
		Long:  "Applies the modality LUT, the VOI window or table and the presentation LUT to one frame, paints the activated overlays and writes the result in the format of the --out extension",
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
			params, err := renderParams(cmd, f.Strict)
			if err != nil {
				return err
			}

			frame, _ := cmd.Flags().GetInt("frame")
			s, desc, err := src.samples(frame)
			if err != nil {
				return err
			}
			out, err := img.Render(s, desc, frame, params)
			if out == nil {
				return err
			}
			if err != nil {
				slog.WarnContext(ctx, "overlays not drawn", "error", err)
			}
			if width, _ := cmd.Flags().GetInt("width"); width > 0 {
				out = imaging.Resize(out, width, 0, imaging.Lanczos)
			}
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = fmt.Sprintf("frame_%d.png", frame)
			}
			if err := imaging.Save(out, outPath); err != nil {
				return fmt.Errorf("failed to save %s: %w", outPath, err)
			}
			slog.InfoContext(ctx, "rendered", "frame", frame, "out", outPath, "modality", desc.Modality)
			return nil
		},
	}
	addSourceFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.Int("frame", 0, "Frame index")
	pf.StringP("out", "o", "", "Output path, .png or .jpg")
	pf.Int("width", 0, "Resize to this width, keeping the aspect ratio")
	pf.Float64("window", 0, "Window width, the default preset when unset")
	pf.Float64("level", 0, "Window center, the default preset when unset")
	pf.String("shape", "", "VOI LUT function (LINEAR, SIGMOID, SIGMOID_NORM, LOG, LOG_INV)")
	pf.Bool("inverse", false, "Invert the grayscale output")
	pf.Bool("padding", true, "Map pixel padding to the darkest output")
	pf.Bool("fill-outside", false, "Stretch the VOI output over the allocated range")
	pf.Bool("color-window", false, "Window color images too")
	pf.String("pr", "", "Grayscale softcopy presentation state file")
	pf.String("presets", "", "YAML table of modality presets added to the built in ones")
	pf.Int("overlays", 0, "Overlay activation mask, bit i for group 60xx with xx = 2*i")
	pf.String("overlay-color", "#ffffff", "Overlay color as #rrggbb")
	return cmd
}

func renderParams(cmd *cobra.Command, strict bool) (*img.RenderParams, error) {
	fl := cmd.Flags()
	p := &img.RenderParams{}
	if fl.Changed("window") {
		w, _ := fl.GetFloat64("window")
		p.Window = img.Ptr(w)
	}
	if fl.Changed("level") {
		l, _ := fl.GetFloat64("level")
		p.Level = img.Ptr(l)
	}
	if name, _ := fl.GetString("shape"); name != "" {
		shape, ok := lut.ParseShape(name)
		if !ok {
			return nil, fmt.Errorf("unknown shape %q", name)
		}
		p.Shape = shape
	}
	padding, _ := fl.GetBool("padding")
	p.PixelPadding = img.Ptr(padding)
	p.InverseLUT, _ = fl.GetBool("inverse")
	p.FillOutsideLUTRange, _ = fl.GetBool("fill-outside")
	p.AllowWindowLevelOnColor, _ = fl.GetBool("color-window")
	p.OverlayActivationMask, _ = fl.GetInt("overlays")

	c, _ := fl.GetString("overlay-color")
	col, err := img.ParseOverlayColor(c)
	if err != nil {
		return nil, err
	}
	p.OverlayColor = col

	prPath, _ := fl.GetString("pr")
	if p.PresentationState, err = presentationState(prPath, strict); err != nil {
		return nil, err
	}
	return p, nil
}
