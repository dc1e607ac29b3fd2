package media

import (
	"path/filepath"
	"strings"
)

var supportedVideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
}

var supportedAudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aac":  true,
	".ogg":  true,
	".m4a":  true,
}

// IsSupportedSource reports whether the decode service can handle the
// file. Audio-only sources are valid: they carry segments but no
// frames.
func IsSupportedSource(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedVideoExtensions[ext] || supportedAudioExtensions[ext]
}

// HasVideoTrack reports whether a source can produce frames at all,
// judged by extension. Sources without one skip frame-waiter
// registration.
func HasVideoTrack(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedVideoExtensions[ext]
}
