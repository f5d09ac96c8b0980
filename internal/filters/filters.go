// Package filters assembles the ffmpeg filter graphs used by the palette and
// encode passes.
package filters

import "strings"

const (
	// PassthroughScale keeps the source dimensions when no scale is given.
	PassthroughScale = "scale=0:0"

	paletteGen   = "palettegen"
	paletteMerge = " [x]; [x][1:v] paletteuse"
)

// Options are the user-supplied transforms. Empty fields are unset.
type Options struct {
	Crop  string // width:height:x:y, applied before scaling
	Scale string // width:height
	Extra string // raw filter clause, appended verbatim
}

// Chain is an ordered list of filter clauses.
type Chain []string

// Build orders the clauses crop, scale, extra. Scale is always present.
func Build(opts Options) Chain {
	chain := make(Chain, 0, 3)
	if opts.Crop != "" {
		chain = append(chain, "crop="+opts.Crop)
	}
	if opts.Scale != "" {
		chain = append(chain, "scale="+opts.Scale)
	} else {
		chain = append(chain, PassthroughScale)
	}
	if opts.Extra != "" {
		chain = append(chain, opts.Extra)
	}
	return chain
}

func (c Chain) String() string {
	return strings.Join(c, ",")
}

// PaletteGraph is the -vf argument of the palette pass.
func (c Chain) PaletteGraph() string {
	return strings.Join(append(c[:len(c):len(c)], paletteGen), ",")
}

// EncodeGraph is the -lavfi argument of the encode pass. The filtered video
// is labelled [x] and merged with the palette input (stream 1:v).
func (c Chain) EncodeGraph() string {
	return c.String() + paletteMerge
}
