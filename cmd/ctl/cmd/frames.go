package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jpfielding/dicomimg.go/pkg/frames"
	"github.com/spf13/cobra"
)

// NewFramesCmd lists the byte ranges of each frame
func NewFramesCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames [file]",
		Short: "Pixel data frame addressing",
		Long:  "Prints the image geometry and the fragments or byte ranges of every frame. --dump-frame writes one frame, decoded when a decoder is registered for the transfer syntax.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFile(ctx, cmd, sourceArg(cmd, args))
			if err != nil {
				return err
			}
			defer f.Close()
			src, err := openImage(f)
			if err != nil {
				return err
			}

			if dumpFrame, _ := cmd.Flags().GetInt("dump-frame"); dumpFrame >= 0 {
				raw, _ := cmd.Flags().GetBool("raw")
				out, _ := cmd.Flags().GetString("out")
				return dumpFrameTo(cmd, src, dumpFrame, raw, out)
			}

			type frameRanges struct {
				Frame  int            `json:"frame"`
				Ranges []frames.Range `json:"ranges,omitempty"`
				Error  string         `json:"error,omitempty"`
			}
			report := struct {
				Syntax       string        `json:"transferSyntax"`
				Encapsulated bool          `json:"encapsulated"`
				FrameLength  int           `json:"frameLength"`
				Frames       []frameRanges `json:"frames"`
			}{
				Syntax:       fmt.Sprintf("%s (%s)", f.Syntax, f.Syntax.Name()),
				Encapsulated: f.Syntax.IsEncapsulated(),
				FrameLength:  src.desc.FrameLength(),
			}
			for i := range src.loc.Frames() {
				fr := frameRanges{Frame: i}
				// a mismatched frame does not stop the others
				if fr.Ranges, err = src.loc.Locate(i); err != nil {
					fr.Error = err.Error()
				}
				report.Frames = append(report.Frames, fr)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	addSourceFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.Int("dump-frame", -1, "Index of frame to dump to disk")
	pf.Bool("raw", false, "Dump the encapsulated bytes without decoding")
	pf.String("out", "", "Output path for dumped frame")
	return cmd
}

func dumpFrameTo(cmd *cobra.Command, src *pixelSource, frame int, raw bool, outPath string) error {
	read := src.loc.DecodeFrame
	if raw {
		read = src.loc.ReadFrame
	}
	data, err := read(frame)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = fmt.Sprintf("frame_%d.bin", frame)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Dumping frame %d (%d bytes) to %s\n", frame, len(data), outPath)
	return os.WriteFile(outPath, data, 0644)
}
