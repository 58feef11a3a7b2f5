// imagegen writes tiny valid image files for exercising the upload
// pipeline without real screenshots: solid-color PNG, GIF, and JPEG
// samples a few hundred bytes each.
//
// Usage:
//
//	go run tools/imagegen.go -dir /tmp/fixtures
//	go run tools/imagegen.go -dir testdata -formats png -count 3 -size 16
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

var palette = []color.RGBA{
	{R: 0xE0, G: 0x40, B: 0x40, A: 0xFF},
	{R: 0x40, G: 0xE0, B: 0x40, A: 0xFF},
	{R: 0x40, G: 0x40, B: 0xE0, A: 0xFF},
	{R: 0xE0, G: 0xE0, B: 0x40, A: 0xFF},
}

func main() {
	dir := flag.String("dir", ".", "output directory")
	formats := flag.String("formats", "png,gif,jpeg", "comma-separated formats to write")
	count := flag.Int("count", 1, "files per format")
	size := flag.Int("size", 8, "image width and height in pixels")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *dir, err)
		os.Exit(1)
	}

	for _, format := range strings.Split(*formats, ",") {
		format = strings.TrimSpace(strings.ToLower(format))

		for i := 0; i < *count; i++ {
			name := fmt.Sprintf("sample-%d.%s", i+1, ext(format))
			if *count == 1 {
				name = "sample." + ext(format)
			}
			path := filepath.Join(*dir, name)

			if err := writeImage(path, format, solidImage(*size, palette[i%len(palette)])); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Println(path)
		}
	}
}

func ext(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

func solidImage(size int, fill color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

func writeImage(path, format string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch format {
	case "png":
		err = png.Encode(f, img)
	case "gif":
		err = gif.Encode(f, img, nil)
	case "jpeg", "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 80})
	default:
		err = fmt.Errorf("unknown format %q", format)
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
