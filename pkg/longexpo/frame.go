package longexpo

import (
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/abworrall/longexpo/pkg/emath"
)

// A Frame holds one photo from the burst, as loaded, and as the float
// raster the pipeline works on.
type Frame struct {
	LoadFilename string
	LoadedImage  image.Image // The original photo image
	CaptureTime  time.Time   // From EXIF, if the file had any

	// The raster is filled in by Prepare, after any resizing
	emath.Raster
}

func (f Frame) String() string {
	when := "no capture time"
	if !f.CaptureTime.IsZero() {
		when = f.CaptureTime.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s: %s, %s", f.Filename(), f.LoadedImage.Bounds().Size(), when)
}

func (f Frame) Filename() string {
	return filepath.Base(f.LoadFilename)
}
