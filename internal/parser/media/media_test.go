package media

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codegraph/internal/parser"
)

func parseMedia(t *testing.T, path string, content []byte) *parser.Result {
	t.Helper()
	p := NewParser()
	return p.Parse(context.Background(), parser.Input{
		Path:    path,
		AbsPath: "/repo/" + path,
		Content: content,
		Options: parser.Options{ExtractDimensions: true, ParseGltfMetadata: true},
	})
}

func pngHeader(w, h uint32) []byte {
	b := make([]byte, 24)
	copy(b, "\x89PNG\r\n\x1a\n")
	binary.BigEndian.PutUint32(b[8:12], 13)
	copy(b[12:16], "IHDR")
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	return b
}

func TestPNGDimensions(t *testing.T) {
	res := parseMedia(t, "logo.png", pngHeader(640, 480))
	require.NotNil(t, res.Media)
	assert.Equal(t, 640, res.Media.Width)
	assert.Equal(t, 480, res.Media.Height)
	assert.Equal(t, "image", res.Media.Category)
}

func TestGIFDimensions(t *testing.T) {
	b := make([]byte, 13)
	copy(b, "GIF89a")
	binary.LittleEndian.PutUint16(b[6:8], 320)
	binary.LittleEndian.PutUint16(b[8:10], 200)
	res := parseMedia(t, "anim.gif", b)
	assert.Equal(t, 320, res.Media.Width)
	assert.Equal(t, 200, res.Media.Height)
}

func TestBMPDimensions(t *testing.T) {
	b := make([]byte, 26)
	b[0], b[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(b[18:22], 800)
	binary.LittleEndian.PutUint32(b[22:26], uint32(0xFFFFFDA8)) // -600 top-down
	res := parseMedia(t, "shot.bmp", b)
	assert.Equal(t, 800, res.Media.Width)
	assert.Equal(t, 600, res.Media.Height)
}

func TestJPEGDimensions(t *testing.T) {
	// SOI + APP0 stub + SOF0 with 1024x768
	b := []byte{0xff, 0xd8}
	app0 := []byte{0xff, 0xe0, 0x00, 0x04, 0x00, 0x00}
	sof := []byte{0xff, 0xc0, 0x00, 0x11, 0x08, 0x03, 0x00, 0x04, 0x00}
	binary.BigEndian.PutUint16(sof[5:7], 768)  // height
	binary.BigEndian.PutUint16(sof[7:9], 1024) // width
	b = append(append(b, app0...), sof...)
	b = append(b, make([]byte, 16)...) // component data padding
	res := parseMedia(t, "photo.jpg", b)
	assert.Equal(t, 1024, res.Media.Width)
	assert.Equal(t, 768, res.Media.Height)
}

func TestSVGDimensions(t *testing.T) {
	res := parseMedia(t, "icon.svg", []byte(`<svg xmlns="x" width="24" height="16"></svg>`))
	assert.Equal(t, 24, res.Media.Width)
	assert.Equal(t, 16, res.Media.Height)

	res = parseMedia(t, "vb.svg", []byte(`<svg viewBox="0 0 100 50"></svg>`))
	assert.Equal(t, 100, res.Media.Width)
	assert.Equal(t, 50, res.Media.Height)
}

func TestGltfMetadata(t *testing.T) {
	doc := `{"asset":{"generator":"Blender","version":"2.0"},"meshes":[{},{}],"materials":[{}],"nodes":[{},{},{}]}`
	res := parseMedia(t, "ship.gltf", []byte(doc))
	require.NotNil(t, res.Media)
	assert.Equal(t, "3d", res.Media.Category)
	assert.Equal(t, 2, res.Media.MeshCount)
	assert.Equal(t, 1, res.Media.MaterialCount)
	assert.Equal(t, 3, res.Media.NodeCount)
	assert.Equal(t, "Blender", res.Media.GeneratorTag)
}

func TestGLBChunk(t *testing.T) {
	jsonDoc := []byte(`{"asset":{"version":"2.0"},"meshes":[{}]}`)
	b := make([]byte, 20)
	copy(b, "glTF")
	binary.LittleEndian.PutUint32(b[4:8], 2)
	binary.LittleEndian.PutUint32(b[8:12], uint32(20+len(jsonDoc)))
	binary.LittleEndian.PutUint32(b[12:16], uint32(len(jsonDoc)))
	copy(b[16:20], "JSON")
	b = append(b, jsonDoc...)

	res := parseMedia(t, "model.glb", b)
	require.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.Media.MeshCount)
}

func TestHashStableAndWindowed(t *testing.T) {
	small := pngHeader(1, 1)
	a := parseMedia(t, "a.png", small)
	b := parseMedia(t, "a.png", small)
	assert.Equal(t, a.Media.Hash, b.Media.Hash)

	// Bytes beyond the 64 KiB window do not change the hash.
	big := append(append([]byte{}, small...), make([]byte, hashWindow)...)
	bigger := append(append([]byte{}, big...), 0xAA)
	assert.Equal(t,
		parseMedia(t, "b.png", big).Media.Hash,
		parseMedia(t, "b.png", bigger).Media.Hash)
}

func TestCorruptHeaderWarns(t *testing.T) {
	res := parseMedia(t, "bad.png", []byte("not a png at all"))
	require.NotNil(t, res.Media)
	assert.Zero(t, res.Media.Width)
	assert.NotEmpty(t, res.Warnings)
}
