// Package dataurl parses base64 "data:" image references.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`^data:(.+);base64,(.*)$`)

// DataURL is a parsed inline payload.
type DataURL struct {
	MIMEType string
	// Data is the still-encoded base64 payload.
	Data string
}

// Parse splits a base64 data URL. ok is false for anything else, including
// external http(s) URLs.
func Parse(value string) (DataURL, bool) {
	if !strings.HasPrefix(value, "data:") {
		return DataURL{}, false
	}
	m := pattern.FindStringSubmatch(value)
	if m == nil {
		return DataURL{}, false
	}
	return DataURL{MIMEType: m[1], Data: m[2]}, true
}

// Decode returns the raw bytes of the payload.
func (d DataURL) Decode() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(d.Data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(d.Data, "="))
		if err != nil {
			return nil, fmt.Errorf("dataurl: decode: %w", err)
		}
	}
	return raw, nil
}

// String re-encodes the data URL.
func (d DataURL) String() string {
	return "data:" + d.MIMEType + ";base64," + d.Data
}
