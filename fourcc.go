package webcam

import (
	"fmt"
	"strings"
)

// FourCC packs four ASCII characters the way V4L2 and Media Foundation
// build their pixel format codes.
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// FourCCString renders a packed code back to its characters.
func FourCCString(code uint32) string {
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	return strings.TrimRight(string(b), " \x00")
}

type pixelFormatInfo struct {
	name string
	// bytes per pixel as a fraction; zero for compressed encodings
	num, den int
	aliases  []string
}

var pixelFormats = map[PixelFormat]pixelFormatInfo{
	FormatRGB24:   {name: "RGB24", num: 3, den: 1, aliases: []string{"rgb3", "rgb", "bgr24"}},
	FormatRGB32:   {name: "RGB32", num: 4, den: 1, aliases: []string{"rgb4", "bgr4", "bgra", "xrgb"}},
	FormatYUYV:    {name: "YUYV", num: 2, den: 1, aliases: []string{"yuy2", "yuv422", "422"}},
	FormatYUV420P: {name: "YUV420P", num: 3, den: 2, aliases: []string{"i420", "yu12", "yuv420", "420"}},
	FormatMJPEG:   {name: "MJPEG", aliases: []string{"mjpg", "jpeg", "jpg"}},
}

// ParsePixelFormat accepts the canonical names, common FourCC spellings and
// the numeric values of the C API.
func ParsePixelFormat(s string) (PixelFormat, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for f, info := range pixelFormats {
		if needle == strings.ToLower(info.name) {
			return f, nil
		}
		for _, alias := range info.aliases {
			if needle == alias {
				return f, nil
			}
		}
	}
	var n int
	if _, err := fmt.Sscanf(needle, "%d", &n); err == nil && fmt.Sprint(n) == needle {
		if PixelFormat(n).Valid() {
			return PixelFormat(n), nil
		}
	}
	return 0, fmt.Errorf("%w: pixel format %q", ErrUnsupported, s)
}

// PixelFormats lists the supported encodings in their numeric order.
func PixelFormats() []PixelFormat {
	return []PixelFormat{FormatRGB24, FormatRGB32, FormatYUYV, FormatYUV420P, FormatMJPEG}
}
