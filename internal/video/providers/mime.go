package providers

import "strings"

var mimeTypes = map[string][]string{
	"video/mp4":        {"mp4", "mp4v", "mpg4"},
	"video/x-matroska": {"mkv", "mk3d", "mks"},
	"video/quicktime":  {"mov", "qt"},
	"video/webm":       {"webm"},
	"video/x-flv":      {"flv"},
	"video/x-msvideo":  {"avi"},
	"video/ogg":        {"ogv"},
	"video/x-m4v":      {"m4v"},
	"video/h264":       {"h264"},
}

// Browsers can't play these reliably.
var unsupportedSubtypes = []string{"x-flv", "x-matroska", "x-ms-wmv", "x-msvideo"}

// MimeTypeForExtension returns the video mime type for a file extension without the dot.
func MimeTypeForExtension(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	for mimeType, exts := range mimeTypes {
		for _, e := range exts {
			if e == ext {
				return mimeType, true
			}
		}
	}
	return "", false
}

func IsSupportedMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	subtype, ok := strings.CutPrefix(mimeType, "video/")
	if !ok || subtype == "" {
		return false
	}
	for _, bad := range unsupportedSubtypes {
		if strings.HasPrefix(subtype, bad) {
			return false
		}
	}
	for _, r := range subtype {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}
