package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ErrNotMedia is returned when a local file is neither audio nor video.
var ErrNotMedia = errors.New("file is neither audio nor video")

// DetectMIME sniffs the content of a local file.
func DetectMIME(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// IsMedia reports whether a MIME type is audio, video, or an Ogg container.
func IsMedia(mime string) bool {
	m := mimetype.Lookup(mime)
	for ; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "video/") || strings.HasPrefix(s, "audio/") || m.Is("application/ogg") {
			return true
		}
	}
	return strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/")
}

// notMediaTypes are identified formats GStreamer cannot transcode. Their
// children (e.g. application/json under text/plain) are rejected too.
var notMediaTypes = []string{
	"text/plain",
	"text/html",
	"text/xml",
	"application/pdf",
	"application/zip",
	"application/gzip",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
	"application/x-tar",
	"application/x-elf",
	"application/x-executable",
	"application/vnd.microsoft.portable-executable",
}

// IsNotMedia reports whether a MIME type is positively identified as something
// other than audio or video.
func IsNotMedia(mime string) bool {
	if IsMedia(mime) {
		return false
	}
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	m := mimetype.Lookup(mime)
	for ; m != nil; m = m.Parent() {
		for _, t := range notMediaTypes {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

// CheckLocalFile returns ErrNotMedia when path is identified as a non-media
// file. Unidentified content is left to the decoder.
func CheckLocalFile(path string) error {
	mime, err := DetectMIME(path)
	if err != nil {
		return err
	}
	if IsNotMedia(mime) {
		return fmt.Errorf("%w: %s is %s", ErrNotMedia, path, mime)
	}
	if !IsMedia(mime) {
		log.Warn().Str("input", path).Str("mime", mime).Msg("unknown input type, trying to decode it anyway")
	}
	return nil
}
