package media

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDecode(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("hello world"))

	tests := []struct {
		name     string
		in       string
		wantType string
		wantData []byte
	}{
		{
			name:     "well formed data url",
			in:       "data:image/png;base64," + encoded,
			wantType: "image/png",
			wantData: []byte("hello world"),
		},
		{
			name:     "uppercase type is normalised",
			in:       "data:IMAGE/JPEG;base64," + encoded,
			wantType: "image/jpeg",
			wantData: []byte("hello world"),
		},
		{
			name:     "no prefix at all",
			in:       encoded,
			wantType: DefaultContentType,
			wantData: []byte("hello world"),
		},
		{
			name:     "prefix without a type",
			in:       "data:;base64," + encoded,
			wantType: DefaultContentType,
			wantData: []byte("hello world"),
		},
		{
			name:     "garbage prefix",
			in:       "not-a-prefix," + encoded,
			wantType: DefaultContentType,
			wantData: []byte("hello world"),
		},
		{
			name:     "payload with whitespace and stray symbols",
			in:       "data:image/png;base64,aGVs bG8g\nd29y*bGQ=",
			wantType: "image/png",
			wantData: []byte("hello world"),
		},
		{
			name:     "url safe alphabet",
			in:       "data:image/png;base64," + base64.URLEncoding.EncodeToString([]byte{0xfb, 0xff}),
			wantType: "image/png",
			wantData: []byte{0xfb, 0xff},
		},
		{
			name:     "percent encoded data url",
			in:       "data:image/svg+xml,%3Csvg%3E%3C%2Fsvg%3E",
			wantType: "image/svg+xml",
			wantData: []byte("<svg></svg>"),
		},
		{
			name:     "empty input",
			in:       "",
			wantType: DefaultContentType,
			wantData: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.in)
			assert.Equal(t, tt.wantType, got.ContentType)
			assert.Equal(t, string(tt.wantData), string(got.Data))
		})
	}
}

func TestDecode_TruncatedPayloadIsBestEffort(t *testing.T) {
	// "aGVsbG8" is "hello" missing its padding, plus one dangling symbol.
	got := Decode("data:text/plain;base64,aGVsbG8gx")
	assert.Equal(t, "text/plain", got.ContentType)
	assert.Equal(t, "hello ", string(got.Data))
}

func TestDecode_NeverPanics(t *testing.T) {
	inputs := []string{",", ",,,", "data:", "data:;", ":;,", "====", "data:image/png;base64,===="}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Decode(in) }, in)
	}
}

func TestImageType(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		wantType string
		wantExt  string
	}{
		{"png by bytes", Payload{Data: pngHeader, ContentType: DefaultContentType}, "image/png", ".png"},
		{"jpeg declared as png", Payload{Data: jpegHeader, ContentType: "image/png"}, "image/jpeg", ".jpg"},
		{"gif", Payload{Data: []byte("GIF89a\x01\x00\x01\x00"), ContentType: "image/gif"}, "image/gif", ".gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, ext, err := ImageType(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ct)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestImageType_RejectsRenderableContent(t *testing.T) {
	inputs := []string{
		"data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte("<script>alert(document.cookie)</script>")),
		"data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"/>`)),
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("<html><body>hi</body></html>")),
		"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")),
	}
	for _, in := range inputs {
		_, _, err := ImageType(Decode(in))
		assert.ErrorIs(t, err, ErrUnsupportedImage, in)
	}
}
