package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsImageContentType(t *testing.T) {
	assert.True(t, IsImageContentType("image/png"))
	assert.True(t, IsImageContentType("IMAGE/JPEG"))
	assert.True(t, IsImageContentType("image/svg+xml"))
	assert.False(t, IsImageContentType("text/plain"))
	assert.False(t, IsImageContentType(""))
	assert.False(t, IsImageContentType("application/octet-stream"))
}

func TestSafeExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "cat.jpg", ".jpg"},
		{"upper", "DOG.PNG", ".PNG"},
		{"multi dot", "frame.0001.tiff", ".tiff"},
		{"none", "README", ""},
		{"unsafe chars", "evil.p%g", ".pg"},
		{"only dot", "trailing.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeExtension(tt.filename))
		})
	}
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "cat", FileStem("cat.jpg"))
	assert.Equal(t, "frame.0001", FileStem("frame.0001.png"))
	assert.Equal(t, "README", FileStem("README"))
	assert.Equal(t, ".hidden", FileStem(".hidden"))
}
