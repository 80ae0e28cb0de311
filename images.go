package micropub

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const jpegQuality = 80

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// downscaleImage re-encodes the image at path as JPEG when it is wider
// than maxWidth, preserving the aspect ratio. Non-image files and files
// already within bounds are left untouched.
func downscaleImage(path string, maxWidth int) error {
	if maxWidth <= 0 || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Not a decodable image; keep the original bytes.
		return nil
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth {
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h*maxWidth/w))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
