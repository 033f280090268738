package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewDumpCmd prints the attributes of a file
func NewDumpCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [file]",
		Short: "DICOM attribute dump",
		Long:  "Prints the file meta information and data set as indented text or DICOM JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFile(ctx, cmd, sourceArg(cmd, args))
			if err != nil {
				return err
			}
			defer f.Close()

			format, _ := cmd.Flags().GetString("format")
			if format == "" {
				format = "json"
				if term.IsTerminal(int(os.Stdout.Fd())) {
					format = "text"
				}
			}
			filter, _ := cmd.Flags().GetString("filter")
			keep, err := attributeFilter(filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				fmt.Fprintf(out, "# transfer syntax: %s (%s)\n", f.Syntax, f.Syntax.Name())
				fmt.Fprint(out, f.Meta.Dump(keep))
				fmt.Fprint(out, f.Dataset.Dump(keep))
			case "json":
				ds := f.Dataset
				if keep != nil {
					ds = filtered(ds, keep)
				}
				return json.NewEncoder(out).Encode(ds)
			default:
				return fmt.Errorf("unknown format %q (text|json)", format)
			}
			return f.Dataset.Err()
		},
	}
	addSourceFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.String("format", "", "output format (text|json), text on a terminal and json otherwise")
	pf.String("filter", "", "glob over keywords or tags, e.g. 'Window*' or '(0028,*'")
	return cmd
}

// attributeFilter matches keywords, (gggg,eeee) tags or ggggeeee tags
func attributeFilter(pattern string) (func(*dicom.Attribute) bool, error) {
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(strings.ToUpper(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	return func(a *dicom.Attribute) bool {
		t := a.Tag()
		return g.Match(strings.ToUpper(t.Keyword())) || g.Match(t.String()) || g.Match(t.Hex())
	}, nil
}

// filtered moves the top level attributes accepted by keep to a new set,
// with the character set they decode with
func filtered(ds *dicom.AttributeSet, keep func(*dicom.Attribute) bool) *dicom.AttributeSet {
	out := dicom.NewSet()
	for a := range ds.All() {
		if keep(a) || a.Tag() == tag.SpecificCharacterSet {
			out.Add(a)
		}
	}
	return out
}
