package uri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidDataURI is returned when a data: URI cannot be decoded
var ErrInvalidDataURI = errors.New("invalid data uri")

// IsDataURI reports whether the uri embeds its content (RFC 2397)
func IsDataURI(uri string) bool {
	return strings.HasPrefix(strings.TrimSpace(uri), "data:")
}

// DecodeDataURI returns the media type and payload of a data: URI
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}

	mediaType := "text/plain"
	isBase64 := false
	params := strings.Split(header, ";")
	if params[0] != "" {
		mediaType = strings.ToLower(params[0])
	}
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some contracts emit unpadded base64
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
			}
		}
		return mediaType, data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mediaType, []byte(data), nil
}
