package upload

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNamer() *Namer {
	return &Namer{
		Now:    func() time.Time { return time.UnixMilli(1712345678901) },
		Random: func() string { return "k3j9x0aa" },
	}
}

func TestGenerateFileName(t *testing.T) {
	n := fixedNamer()
	cases := map[string]string{
		"My Recipe Photo.JPG":    "my-recipe-photo-1712345678901-k3j9x0aa.JPG",
		"crème brûlée.png":       "cr-me-br-l-e-1712345678901-k3j9x0aa.png",
		"Crème.jpg":              "cr-me-1712345678901-k3j9x0aa.jpg",
		"日本.png":                 "---1712345678901-k3j9x0aa.png",
		"noext":                  "noext-1712345678901-k3j9x0aa",
		".png":                   "-png-1712345678901-k3j9x0aa",
		"":                       "file-1712345678901-k3j9x0aa",
		"dir/sub/Photo.webp":     "photo-1712345678901-k3j9x0aa.webp",
		`C:\Users\me\Shot 1.jpg`: "shot-1-1712345678901-k3j9x0aa.jpg",
		"archive.tar.gz":         "archive-tar-1712345678901-k3j9x0aa.gz",
	}
	for in, want := range cases {
		assert.Equal(t, want, n.GenerateFileName(in), in)
	}
}

func TestGenerateFileName_DefaultRandomness(t *testing.T) {
	n := NewNamer()
	pattern := regexp.MustCompile(`^photo-\d+-[a-z0-9]{8}\.jpg$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := n.GenerateFileName("photo.jpg")
		assert.Regexp(t, pattern, name)
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestGenerateFileName_NilNamer(t *testing.T) {
	var n *Namer
	assert.Regexp(t, `^a-\d+-[a-z0-9]{8}\.png$`, n.GenerateFileName("a.png"))
}
