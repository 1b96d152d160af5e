// Package media extracts image dimensions and 3D-model metadata from header
// bytes alone; nothing is ever fully decoded.
package media

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rohankatakam/codegraph/internal/detect"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/parser"
)

func init() {
	parser.Register(detect.ParserMedia, func() parser.Parser { return NewParser() })
}

// hashWindow caps how many leading bytes feed the media content hash.
const hashWindow = 64 * 1024

// Parser probes media headers.
type Parser struct{}

// NewParser creates the media parser.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, in parser.Input) *parser.Result {
	format := detect.Detect(in.Path, in.Content)
	res := &parser.Result{Path: in.Path, AbsPath: in.AbsPath, Format: format}

	window := in.Content
	if len(window) > hashWindow {
		window = window[:hashWindow]
	}

	mf := &parser.MediaFile{
		Format:    format.Name,
		Category:  "image",
		SizeBytes: int64(len(in.Content)),
		Hash:      ids.ShortHash(window),
	}

	switch format.Name {
	case "gltf", "glb":
		mf.Category = "3d"
		if in.Options.ParseGltfMetadata {
			if err := p.parseGltf(mf, format.Name, in.Content); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("gltf metadata: %v", err))
			}
		}
	default:
		if in.Options.ExtractDimensions {
			if w, h, ok := probeDimensions(format.Name, in.Content); ok {
				mf.Width, mf.Height = w, h
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("no dimensions in %s header: %s", format.Name, in.Path))
			}
		}
	}

	res.Media = mf
	return res
}

// probeDimensions reads width/height from format headers.
func probeDimensions(format string, b []byte) (int, int, bool) {
	switch format {
	case "png":
		return probePNG(b)
	case "jpeg":
		return probeJPEG(b)
	case "gif":
		return probeGIF(b)
	case "webp":
		return probeWebP(b)
	case "bmp":
		return probeBMP(b)
	case "svg":
		return probeSVG(b)
	}
	return 0, 0, false
}

// probePNG reads the IHDR chunk: signature(8) + length(4) + "IHDR"(4) +
// width(4) + height(4), all big-endian.
func probePNG(b []byte) (int, int, bool) {
	if len(b) < 24 || string(b[12:16]) != "IHDR" {
		return 0, 0, false
	}
	w := binary.BigEndian.Uint32(b[16:20])
	h := binary.BigEndian.Uint32(b[20:24])
	return int(w), int(h), true
}

// probeJPEG scans markers for the first SOF segment carrying the frame size.
func probeJPEG(b []byte) (int, int, bool) {
	if len(b) < 4 || b[0] != 0xff || b[1] != 0xd8 {
		return 0, 0, false
	}
	i := 2
	for i+9 < len(b) {
		if b[i] != 0xff {
			i++
			continue
		}
		marker := b[i+1]
		// SOF0..SOF15 except DHT(0xc4), JPG(0xc8), DAC(0xcc)
		if marker >= 0xc0 && marker <= 0xcf && marker != 0xc4 && marker != 0xc8 && marker != 0xcc {
			h := int(binary.BigEndian.Uint16(b[i+5 : i+7]))
			w := int(binary.BigEndian.Uint16(b[i+7 : i+9]))
			return w, h, true
		}
		if marker == 0xd8 || (marker >= 0xd0 && marker <= 0xd9) {
			i += 2
			continue
		}
		segLen := int(binary.BigEndian.Uint16(b[i+2 : i+4]))
		i += 2 + segLen
	}
	return 0, 0, false
}

// probeGIF reads the logical screen descriptor after the 6-byte signature.
func probeGIF(b []byte) (int, int, bool) {
	if len(b) < 10 {
		return 0, 0, false
	}
	w := int(binary.LittleEndian.Uint16(b[6:8]))
	h := int(binary.LittleEndian.Uint16(b[8:10]))
	return w, h, true
}

// probeWebP handles the three chunk layouts: VP8 (lossy), VP8L (lossless)
// and VP8X (extended).
func probeWebP(b []byte) (int, int, bool) {
	if len(b) < 30 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		return 0, 0, false
	}
	switch string(b[12:16]) {
	case "VP8 ":
		// frame tag at 20: 3 bytes sync, then 16-bit width/height at 26/28
		w := int(binary.LittleEndian.Uint16(b[26:28]) & 0x3fff)
		h := int(binary.LittleEndian.Uint16(b[28:30]) & 0x3fff)
		return w, h, true
	case "VP8L":
		// 1 signature byte then 14-bit width-1 and height-1
		bits := binary.LittleEndian.Uint32(b[21:25])
		w := int(bits&0x3fff) + 1
		h := int((bits>>14)&0x3fff) + 1
		return w, h, true
	case "VP8X":
		// 24-bit canvas width-1 / height-1 at offsets 24 and 27
		w := int(uint32(b[24])|uint32(b[25])<<8|uint32(b[26])<<16) + 1
		h := int(uint32(b[27])|uint32(b[28])<<8|uint32(b[29])<<16) + 1
		return w, h, true
	}
	return 0, 0, false
}

// probeBMP reads BITMAPINFOHEADER width/height (signed little-endian).
func probeBMP(b []byte) (int, int, bool) {
	if len(b) < 26 || b[0] != 'B' || b[1] != 'M' {
		return 0, 0, false
	}
	w := int(int32(binary.LittleEndian.Uint32(b[18:22])))
	h := int(int32(binary.LittleEndian.Uint32(b[22:26])))
	if h < 0 {
		h = -h // top-down bitmaps store a negative height
	}
	return w, h, true
}

var (
	svgDimRe     = regexp.MustCompile(`<svg[^>]*\swidth=["']?(\d+)(?:px)?["']?[^>]*\sheight=["']?(\d+)(?:px)?["']?`)
	svgViewBoxRe = regexp.MustCompile(`viewBox=["']\s*[\d.+-]+[\s,]+[\d.+-]+[\s,]+([\d.]+)[\s,]+([\d.]+)`)
)

// probeSVG scans the opening tag for width/height attributes, falling back
// to the viewBox.
func probeSVG(b []byte) (int, int, bool) {
	head := b
	if len(head) > 4096 {
		head = head[:4096]
	}
	s := string(head)
	if m := svgDimRe.FindStringSubmatch(s); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		return w, h, true
	}
	if m := svgViewBoxRe.FindStringSubmatch(s); m != nil {
		w, _ := strconv.ParseFloat(m[1], 64)
		h, _ := strconv.ParseFloat(m[2], 64)
		return int(w), int(h), true
	}
	return 0, 0, false
}

// gltfDoc is the subset of the glTF JSON needed for metadata.
type gltfDoc struct {
	Asset struct {
		Generator string `json:"generator"`
		Version   string `json:"version"`
	} `json:"asset"`
	Meshes    []json.RawMessage `json:"meshes"`
	Materials []json.RawMessage `json:"materials"`
	Nodes     []json.RawMessage `json:"nodes"`
}

// parseGltf reads model metadata from the JSON document (.gltf) or the JSON
// chunk of a binary container (.glb).
func (p *Parser) parseGltf(mf *parser.MediaFile, format string, b []byte) error {
	payload := b
	if format == "glb" {
		// GLB: 12-byte header (magic, version, length) then chunks of
		// {length, type, data}; the first chunk is JSON.
		if len(b) < 20 || string(b[0:4]) != "glTF" {
			return fmt.Errorf("not a GLB container")
		}
		chunkLen := binary.LittleEndian.Uint32(b[12:16])
		if string(b[16:20]) != "JSON" || int(20+chunkLen) > len(b) {
			return fmt.Errorf("malformed GLB JSON chunk")
		}
		payload = b[20 : 20+chunkLen]
	}

	var doc gltfDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode glTF JSON: %w", err)
	}
	mf.MeshCount = len(doc.Meshes)
	mf.MaterialCount = len(doc.Materials)
	mf.NodeCount = len(doc.Nodes)
	mf.GeneratorTag = doc.Asset.Generator
	return nil
}
