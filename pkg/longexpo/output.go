package longexpo

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/mdouchement/hdr/codec/rgbe"

	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/flow"
)

// OutputName is the file each blend mode's composite is written to.
func OutputName(mode string) string {
	return fmt.Sprintf("result_%s_blend.png", mode)
}

func WritePNG(img image.Image, filename string) error {
	if err := imaging.Save(img, filename); err != nil {
		return fmt.Errorf("save '%s': %w: %v", filename, emath.ErrResource, err)
	}
	return nil
}

// WriteToHDR outputs a HDR image. You can load this into photoshop or other HDR tools.
func WriteToHDR(r emath.Raster, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("WriteToHDR, open+w '%s': %w: %v", filename, emath.ErrResource, err)
	}
	defer writer.Close()

	if err := rgbe.Encode(writer, r); err != nil {
		return fmt.Errorf("WriteToHDR, encoding RGBE '%s': %w: %v", filename, emath.ErrResource, err)
	}
	return nil
}

type outputFile struct {
	name string
	ok   bool // Whether the stage that makes it has run
	img  func() image.Image
}

// WriteOutputs saves whatever the stages have produced into OutputDir.
func (b *Burst) WriteOutputs() error {
	if err := os.MkdirAll(b.OutputDir, 0755); err != nil {
		return fmt.Errorf("output dir '%s': %w: %v", b.OutputDir, emath.ErrResource, err)
	}

	writes := []outputFile{
		{"face_mask.png", !b.SubjectMask.Empty(), func() image.Image { return b.SubjectMask.ToGray() }},
		{"flow_face_mask.png", !b.FinalMask.Empty(), func() image.Image { return b.FinalMask.ToGray() }},
		{"example_flow_map.png", len(b.Fields) > 0, func() image.Image { return flow.Visualize(b.Fields[0]) }},
		{"blurred_image.png", !b.Blurred.Empty(), func() image.Image { return b.Blurred.ToImage(false) }},
		{"naive_blurred.png", !b.Naive.Empty(), func() image.Image { return b.Naive.ToImage(false) }},
	}
	for _, mode := range BlendModes {
		r, ok := b.Results[mode]
		writes = append(writes, outputFile{OutputName(mode), ok, func() image.Image { return r.ToImage(false) }})
	}

	for _, w := range writes {
		if !w.ok {
			continue
		}
		filename := filepath.Join(b.OutputDir, w.name)
		if err := WritePNG(w.img(), filename); err != nil {
			return err
		}
		if b.Verbosity > 0 {
			log.Printf("wrote %s", filename)
		}
	}

	if !b.Blurred.Empty() {
		if err := WriteToHDR(b.Blurred, filepath.Join(b.OutputDir, "blurred_image.hdr")); err != nil {
			return err
		}
	}
	return nil
}
