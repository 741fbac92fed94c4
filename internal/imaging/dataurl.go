package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DataURL renders the asset as a "data:<mime>;base64,<payload>" string, the
// shape used by share targets and legacy history records.
func DataURL(a Asset) string {
	mime := a.MIMEType
	if mime == "" {
		mime = MIMEJPEG
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// ParseDataURL splits a data URL into its payload and MIME type.
//
// Plain base64 without the "data:" prefix is accepted as well; the MIME type
// is then empty. Standard and URL-safe alphabets are both tried.
func ParseDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", errors.New("empty data URL")
	}

	var mime string
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, "", errors.New("malformed data URL: missing ','")
		}
		meta := s[len("data:"):idx]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			mime = meta[:semi]
		} else {
			mime = meta
		}
		s = s[idx+1:]
	}

	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, mime, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("malformed base64 payload: %w", err)
	}
	return b, mime, nil
}

// AssetFromDataURL decodes a data URL into an Asset, decoding the image to
// recover its dimensions.
func AssetFromDataURL(s string) (Asset, error) {
	data, mime, err := ParseDataURL(s)
	if err != nil {
		return Asset{}, err
	}
	a, err := NewAsset(data)
	if err != nil {
		return Asset{}, err
	}
	if mime != "" {
		a.MIMEType = mime
	}
	return a, nil
}
