package bridge

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMIME sniffs the media type of data, without parameters.
func DetectMIME(data []byte) string {
	mediaType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mediaType)
}
