// Package media decodes the data URLs drivers submit for delivery photos
// and signatures.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"
)

// DefaultContentType is reported when the payload does not declare a usable type.
const DefaultContentType = "application/octet-stream"

var declaredTypePattern = regexp.MustCompile(`:([^;,]*)(?:;|$)`)

// Payload is a decoded data URL.
type Payload struct {
	Data        []byte
	ContentType string
}

// Decode turns "<prefix>,<payload>" into bytes and a content type. It never
// fails: well-formed data URLs are decoded strictly and everything else is
// decoded best-effort, with DefaultContentType when no type is declared.
func Decode(raw string) Payload {
	raw = strings.TrimSpace(raw)

	prefix, body, found := strings.Cut(raw, ",")
	if !found {
		prefix, body = "", raw
	}
	contentType := declaredContentType(prefix)

	if strings.HasPrefix(prefix, "data:") {
		if du, err := dataurl.DecodeString(raw); err == nil {
			return Payload{Data: du.Data, ContentType: contentType}
		}
	}

	return Payload{Data: decodeBase64Lenient(body), ContentType: contentType}
}

// declaredContentType extracts "type/subtype" from a prefix such as
// "data:image/png;base64".
func declaredContentType(prefix string) string {
	m := declaredTypePattern.FindStringSubmatch(prefix)
	if m == nil {
		return DefaultContentType
	}
	ct := strings.ToLower(strings.TrimSpace(m[1]))
	typ, sub, ok := strings.Cut(ct, "/")
	if !ok || typ == "" || sub == "" || strings.ContainsAny(ct, " \t") {
		return DefaultContentType
	}
	return ct
}

func decodeBase64Lenient(s string) []byte {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune('+')
		case r == '_':
			b.WriteRune('/')
		}
	}
	clean := b.String()
	// A single trailing symbol cannot encode a byte.
	if len(clean)%4 == 1 {
		clean = clean[:len(clean)-1]
	}
	out, err := base64.RawStdEncoding.DecodeString(clean)
	if err != nil {
		return nil
	}
	return out
}

// ErrUnsupportedImage is returned for payloads whose bytes are not a raster
// image.
var ErrUnsupportedImage = errors.New("payload is not a supported image")

// rasterImages lists the types accepted for storage with the extension they
// are stored under.
var rasterImages = []struct {
	contentType string
	extension   string
}{
	{"image/jpeg", ".jpg"},
	{"image/png", ".png"},
	{"image/webp", ".webp"},
	{"image/gif", ".gif"},
}

// ImageType inspects the bytes of p and returns the content type and file
// extension to store it under. The declared type is ignored; anything that
// is not a raster image yields ErrUnsupportedImage.
func ImageType(p Payload) (contentType, extension string, err error) {
	mt := mimetype.Detect(p.Data)
	for _, img := range rasterImages {
		if mt.Is(img.contentType) {
			return img.contentType, img.extension, nil
		}
	}
	return "", "", fmt.Errorf("%w: detected %s", ErrUnsupportedImage, mt.String())
}
