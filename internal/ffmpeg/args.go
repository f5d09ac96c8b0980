package ffmpeg

// PaletteArgs reads only the source window and writes the palette image.
func PaletteArgs(seg Segment, palettePath string) []string {
	return []string{
		"-ss", seg.MarkIn,
		"-t", seg.Duration,
		"-i", seg.Input,
		"-vf", seg.Filters.PaletteGraph(),
		"-y", palettePath,
	}
}

// EncodeArgs reads the same window plus the palette (input 1) and writes the
// final GIF with transparency-aware frame diffing.
func EncodeArgs(seg Segment, palettePath string) []string {
	return []string{
		"-ss", seg.MarkIn,
		"-t", seg.Duration,
		"-i", seg.Input,
		"-i", palettePath,
		"-lavfi", seg.Filters.EncodeGraph(),
		"-gifflags", "+transdiff",
		"-y", seg.Output,
	}
}
