package cmd

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/frames"
	"github.com/jpfielding/dicomimg.go/pkg/img"
	"github.com/spf13/cobra"
)

// openFile reads a local path, "-" for stdin, or an http(s) URL. Local
// files stay open for deferred values and must be closed.
func openFile(ctx context.Context, cmd *cobra.Command, uri string) (*dicom.File, error) {
	if uri == "" {
		return nil, fmt.Errorf("file path is required. Use --file flag or provide as argument")
	}
	strict, _ := cmd.Flags().GetBool("strict")
	opts := []dicom.ReadOption{dicom.WithStrict(strict)}
	uri = strings.TrimPrefix(uri, "file://")
	var in io.Reader
	switch {
	case uri == "-":
		in = os.Stdin
	case strings.HasPrefix(uri, "http"):
		insecure, _ := cmd.Flags().GetBool("insecure")
		cl := &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %v", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download: %v", err)
		}
		defer resp.Body.Close()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			reqDump, _ := httputil.DumpRequest(req, true)
			os.Stderr.Write(reqDump)
			resDump, _ := httputil.DumpResponse(resp, false)
			os.Stderr.Write(resDump)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to download: %s", resp.Status)
		}
		in = resp.Body
	default:
		f, err := dicom.ReadFile(uri, opts...)
		if err != nil && f != nil {
			f.Close()
			return nil, err
		}
		return f, err
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %v", err)
	}
	return dicom.ReadBytes(b, opts...)
}

// addSourceFlags registers the flags read by openFile
func addSourceFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path, - for stdin, or http(s) URL")
	pf.Bool("strict", false, "Fail on LUT data that does not match its descriptor")
	pf.Bool("insecure", false, "Skip TLS verification for http sources")
	pf.BoolP("verbose", "v", false, "Dump http requests and responses to stderr")
}

// sourceArg returns --file or the first argument
func sourceArg(cmd *cobra.Command, args []string) string {
	uri, _ := cmd.Flags().GetString("file")
	if uri == "" && len(args) > 0 {
		uri = args[0]
	}
	return uri
}

// pixelSource is the pixel data of an opened file
type pixelSource struct {
	file *dicom.File
	desc *img.Descriptor
	loc  *frames.Locator
}

func openImage(f *dicom.File) (*pixelSource, error) {
	desc, err := img.NewDescriptor(f.Dataset, img.Options{Strict: f.Strict})
	if err != nil {
		if f.Strict {
			return nil, err
		}
		slog.Warn("image description is incomplete", "error", err)
	}
	attr, ok := f.Dataset.Get(tag.PixelData)
	if !ok {
		return nil, fmt.Errorf("no pixel data")
	}
	loc, err := frames.NewLocator(attr, desc, f.Syntax)
	if err != nil {
		return nil, err
	}
	return &pixelSource{file: f, desc: desc, loc: loc}, nil
}

// samples decodes frame i. Decoded encapsulated frames are interleaved.
func (im *pixelSource) samples(i int) (*img.Samples, *img.Descriptor, error) {
	b, err := im.loc.DecodeFrame(i)
	if err != nil {
		return nil, nil, err
	}
	desc := im.desc
	if im.file.Syntax.IsEncapsulated() && desc.PlanarConfiguration != 0 {
		d := *desc
		d.PlanarConfiguration = 0
		desc = &d
	}
	s, err := img.DecodeSamples(b, desc, binary.LittleEndian)
	return s, desc, err
}

// presentationState reads an optional presentation state file
func presentationState(path string, strict bool) (*img.PresentationState, error) {
	if path == "" {
		return nil, nil
	}
	f, err := dicom.ReadFile(path, dicom.WithStrict(strict), dicom.WithDeferThreshold(0), dicom.WithLazyItems(false))
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("presentation state: %w", err)
	}
	if err := f.Dataset.Populate(); err != nil {
		return nil, fmt.Errorf("presentation state: %w", err)
	}
	return img.NewPresentationState(f.Dataset, img.Options{Strict: strict})
}
