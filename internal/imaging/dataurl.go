// Package imaging decodes client-submitted images and computes basic quality metrics.
package imaging

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var dataURLPrefix = regexp.MustCompile(`^data:image/(\w+);base64,`)

// Payload is a decoded image submission
type Payload struct {
	MIMEType string
	Ext      string
	Data     []byte
}

// StripDataURLPrefix removes a leading "data:image/<fmt>;base64," if present
func StripDataURLPrefix(s string) string {
	return dataURLPrefix.ReplaceAllString(strings.TrimSpace(s), "")
}

// DecodeDataURL decodes a data URL or a bare base64 string.
// Bare input is assumed to be PNG until inspected.
func DecodeDataURL(s string) (*Payload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	format := "png"
	if m := dataURLPrefix.FindStringSubmatch(s); m != nil {
		format = strings.ToLower(m[1])
		s = s[len(m[0]):]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some clients drop the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return &Payload{
		MIMEType: "image/" + format,
		Ext:      ext,
		Data:     data,
	}, nil
}
