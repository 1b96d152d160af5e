package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectByExtension(t *testing.T) {
	tests := []struct {
		path     string
		category Category
		format   string
		parser   string
	}{
		{"src/app.ts", CategoryCode, "typescript", ParserTypeScript},
		{"src/App.tsx", CategoryCode, "tsx", ParserTypeScript},
		{"lib/util.mjs", CategoryCode, "javascript", ParserTypeScript},
		{"scripts/run.py", CategoryCode, "python", ParserPython},
		{"components/Nav.vue", CategoryCode, "vue", ParserVue},
		{"components/Nav.svelte", CategoryCode, "svelte", ParserSvelte},
		{"pages/index.astro", CategoryCode, "astro", ParserHTML},
		{"styles/main.scss", CategoryCode, "scss", ParserCSS},
		{"README.md", CategoryCode, "markdown", ParserMarkdown},
		{"package.json", CategoryData, "json", ParserData},
		{"config.yaml", CategoryData, "yaml", ParserData},
		{"pyproject.toml", CategoryData, "toml", ParserData},
		{"sitemap.xml", CategoryData, "xml", ParserData},
		{"assets/logo.png", CategoryMedia, "png", ParserMedia},
		{"models/ship.glb", CategoryMedia, "glb", ParserMedia},
		{"docs/spec.pdf", CategoryDocument, "pdf", ParserDocument},
		{"data/export.csv", CategoryDocument, "csv", ParserDocument},
	}
	for _, tt := range tests {
		f := Detect(tt.path, nil)
		assert.Equal(t, tt.category, f.Category, tt.path)
		assert.Equal(t, tt.format, f.Name, tt.path)
		assert.Equal(t, tt.parser, f.ParserID, tt.path)
	}
}

func TestDetectEnvPatterns(t *testing.T) {
	for _, p := range []string{".env", ".env.local", ".env.production", "config/.env.test"} {
		f := Detect(p, nil)
		assert.Equal(t, CategoryData, f.Category, p)
		assert.Equal(t, "env", f.Name, p)
	}
}

func TestDetectGenericFallback(t *testing.T) {
	f := Detect("main.go", nil)
	assert.Equal(t, CategoryCode, f.Category)
	assert.Equal(t, ParserGeneric, f.ParserID)

	f = Detect("mystery.zzz", nil)
	assert.Equal(t, Unknown, f)
}

func TestDetectSniffing(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	f := Detect("no-extension", png)
	assert.Equal(t, "png", f.Name)

	webp := append([]byte("RIFF"), append(make([]byte, 4), []byte("WEBP")...)...)
	f = Detect("blob", webp)
	assert.Equal(t, "webp", f.Name)

	f = Detect("notes", []byte("just some text"))
	assert.Equal(t, CategoryCode, f.Category)
	assert.Equal(t, ParserGeneric, f.ParserID)

	f = Detect("blob.bin", []byte{0x00, 0x01, 0x02})
	assert.Equal(t, CategoryUnknown, f.Category)
}
