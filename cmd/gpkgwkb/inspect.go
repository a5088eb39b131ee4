package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	gpkg "github.com/tingold/gpkg-wkb"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [hex]",
		Short: "Describe a hex encoded WKB geometry or GeoPackage blob",
		Long: "Describe a hex encoded WKB geometry or GeoPackage geometry blob.\n" +
			"The input is read from stdin when no argument is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) == 1 {
				input = args[0]
			} else {
				b, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return err
				}
				input = string(b)
			}
			data, err := decodeHex(input)
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), data)
		},
	}
}

// decodeHex accepts upper or lower case hex with an optional 0x or \x
// prefix and surrounding whitespace.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), `\x`)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex input: %w", err)
	}
	return b, nil
}

func isBlob(data []byte) bool {
	return len(data) >= 2 && data[0] == 'G' && data[1] == 'P'
}

// inspect writes a description of data, which holds either a GeoPackage
// geometry blob or a bare WKB geometry.
func inspect(w io.Writer, data []byte) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)

	var (
		g   gpkg.Geometry
		env gpkg.Envelope
		err error
	)
	if isBlob(data) {
		var h *gpkg.BinaryHeader
		h, g, err = gpkg.DecodeBlob(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "format:\tgeopackage blob\n")
		fmt.Fprintf(tw, "version:\t%d\n", h.Version())
		fmt.Fprintf(tw, "srs_id:\t%d\n", h.SRSId())
		fmt.Fprintf(tw, "byte order:\t%s\n", h.ByteOrder())
		env = h.Envelope()
		if env.IsEmpty() {
			env = g.Envelope()
		}
	} else {
		g, err = gpkg.Unmarshal(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "format:\twkb\n")
		env = g.Envelope()
	}

	fmt.Fprintf(tw, "type:\t%s (%d)\n", g.Type(), uint32(g.Type()))
	fmt.Fprintf(tw, "dimension:\t%s\n", g.Dimension())
	fmt.Fprintf(tw, "empty:\t%t\n", g.IsEmpty())
	fmt.Fprintf(tw, "coordinates:\t%d\n", g.NumCoords())
	if env.IsEmpty() {
		fmt.Fprintf(tw, "envelope:\tnone\n")
	} else {
		fmt.Fprintf(tw, "envelope:\t%s %v\n", env.Indicator, env.Values())
	}

	if og, err := gpkg.ToOrb(g); err == nil {
		b, err := json.Marshal(geojson.NewGeometry(og))
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "geojson:\t%s\n", b)
	}
	return tw.Flush()
}
