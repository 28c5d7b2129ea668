package longexpo

import (
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".bmp": true, ".gif": true}

// LoadFilesAndDirs loads frames and config from the args. A directory
// contributes its files in filename order; its subdirectories (caches,
// earlier outputs) are skipped. Files that are neither images nor
// .yaml config are ignored.
func (b *Burst) LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {
		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg) // sorted by filename
			if err != nil {
				return fmt.Errorf("readdir %s: %v", arg, err)
			}
			for _, content := range contents {
				if content.IsDir() {
					continue
				}
				if err := b.loadFile(filepath.Join(arg, content.Name())); err != nil {
					return fmt.Errorf("load %s: %v", arg, err)
				}
			}

		default:
			if err := b.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %v", arg, err)
			}
		}
	}

	return nil
}

func (b *Burst) loadFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case imageExts[ext]:
		f, err := loadFrame(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as an image failed: %v", filename, err)
		}
		b.Frames = append(b.Frames, f)

	case ext == ".yaml":
		cfg, err := loadConfig(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %v", filename, err)
		}
		b.Config = cfg
		log.Printf("Loaded base configuration from %s\n", filename)
	}

	return nil
}

func loadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}

	return newConfigFromYaml(contents)
}

func loadFrame(filename string) (Frame, error) {
	f := Frame{LoadFilename: filename}

	img, err := imaging.Open(filename)
	if err != nil {
		return f, fmt.Errorf("decoding '%s': %v", filename, err)
	}
	f.LoadedImage = img

	// Capture time is optional; PNGs never have it
	if reader, err := os.Open(filename); err == nil {
		defer reader.Close()
		if ex, err := exif.Decode(reader); err == nil {
			if t, err := ex.DateTime(); err == nil {
				f.CaptureTime = t
			}
		}
	}

	return f, nil
}

// orderFrames sorts by capture time, if asked to and every frame has
// one, else leaves the filename order alone.
func (b *Burst) orderFrames() {
	if !b.Config.OrderByExif {
		return
	}
	for _, f := range b.Frames {
		if f.CaptureTime.IsZero() {
			log.Printf("%s has no EXIF capture time, keeping filename order", f.Filename())
			return
		}
	}
	sort.SliceStable(b.Frames, func(i, j int) bool { return b.Frames[i].CaptureTime.Before(b.Frames[j].CaptureTime) })
}

// resizeFrame applies the scale, then shrinks each side to a multiple
// of k (never below k).
func resizeFrame(img image.Image, scale float64, k int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if scale > 0 && scale != 1 {
		w = int(math.Max(1, math.Round(float64(w)*scale)))
		h = int(math.Max(1, math.Round(float64(h)*scale)))
	}
	if k > 1 {
		w = roundDownTo(w, k)
		h = roundDownTo(h, k)
	}

	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

func roundDownTo(n, k int) int {
	if n < k {
		return k
	}
	return n / k * k
}
