package webcam

// formatMatchBonus dominates any realistic resolution distance, so an exact
// encoding match always wins before resolution is considered.
const formatMatchBonus = 10000

// Score rates a candidate against a preference:
//
//	(format matches ? 10000 : 0) - |Δwidth| - |Δheight|
func Score(candidate FormatDescriptor, format PixelFormat, width, height int) int {
	score := 0
	if candidate.Format == format {
		score = formatMatchBonus
	}
	return score - abs(candidate.Width-width) - abs(candidate.Height-height)
}

// SelectBestFormat returns the highest scoring catalog entry. Ties go to
// the entry that appears first in the catalog.
func SelectBestFormat(catalog *CapabilityCatalog, format PixelFormat, width, height int) (FormatDescriptor, error) {
	if catalog.Empty() {
		return FormatDescriptor{}, ErrNoCandidateFormat
	}

	best := catalog.Formats[0]
	bestScore := Score(best, format, width, height)
	for _, candidate := range catalog.Formats[1:] {
		if s := Score(candidate, format, width, height); s > bestScore {
			best, bestScore = candidate, s
		}
	}
	return best, nil
}

// FrameSize returns the byte length of one uncompressed frame. The second
// result is false for compressed encodings, whose size is whatever the
// driver reports per capture.
func FrameSize(format PixelFormat, width, height int) (int, bool) {
	info, ok := pixelFormats[format]
	if !ok || info.num == 0 || width <= 0 || height <= 0 {
		return 0, false
	}
	return width * height * info.num / info.den, true
}

// defaultStride is the unpadded row length in bytes. For planar YUV it is
// the luma row; compressed encodings have none.
func defaultStride(format PixelFormat, width int) int {
	switch format {
	case FormatRGB24:
		return width * 3
	case FormatRGB32:
		return width * 4
	case FormatYUYV:
		return width * 2
	case FormatYUV420P:
		return width
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
