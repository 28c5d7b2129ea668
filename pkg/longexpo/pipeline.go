package longexpo

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/abworrall/longexpo/pkg/blend"
	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/exposure"
	"github.com/abworrall/longexpo/pkg/flow"
	"github.com/abworrall/longexpo/pkg/motion"
	"github.com/abworrall/longexpo/pkg/store"
	"github.com/abworrall/longexpo/pkg/subject"
)

// ProgressFunc hears about each finished unit of work in a slow stage.
type ProgressFunc func(stage string, done, total int)

// A Burst holds the frames, and everything derived from them on the way
// to the composites. The stages run in order, each filling in its
// fields; Run does them all.
type Burst struct {
	Frames []Frame // Ordered, by filename or capture time
	Config

	Store     store.Store    // Optional cache for flow fields and masks
	Detectors subject.Config // Injected detectors; if nil, cascades from the config are used
	Progress  ProgressFunc

	Fields        []flow.Field    // Fields[i] is the flow from frame i to frame i+1
	Motion        emath.FloatGrid // Fused flow magnitude
	MotionRef     emath.FloatGrid
	MotionWeights emath.FloatGrid // Normalized MFlow
	SubjectMask   emath.FloatGrid
	FinalMask     emath.FloatGrid

	Blurred emath.Raster // Motion compensated long exposure
	Naive   emath.Raster // Mean of the real frames only

	Results map[string]emath.Raster // Composites, by blend mode
}

func NewBurst() Burst {
	return Burst{
		Frames:  []Frame{},
		Config:  NewConfig(),
		Results: map[string]emath.Raster{},
	}
}

func (b Burst) String() string {
	str := fmt.Sprintf("Burst, sharp frame %d [\n", b.SharpIndex)
	for _, f := range b.Frames {
		str += fmt.Sprintf("  %s\n", f)
	}
	return str + "]\n"
}

func (b *Burst) Sharp() emath.Raster {
	return b.Frames[b.SharpIndex].Raster
}

func (b *Burst) rasters() []emath.Raster {
	rs := make([]emath.Raster, len(b.Frames))
	for i := range b.Frames {
		rs[i] = b.Frames[i].Raster
	}
	return rs
}

func (b *Burst) progress(stage string, done, total int) {
	if b.Progress != nil {
		b.Progress(stage, done, total)
	}
}

func (b *Burst) dumpPath(name string) string {
	return filepath.Join(b.OutputDir, name)
}

// Prepare orders the frames, resizes them, and builds their rasters.
func (b *Burst) Prepare() error {
	if err := b.Config.Validate(); err != nil {
		return err
	}
	if len(b.Frames) < 2 {
		return fmt.Errorf("prepare: %w: need at least 2 frames, have %d", emath.ErrEmptyInput, len(b.Frames))
	}
	if b.SharpIndex < 0 || b.SharpIndex >= len(b.Frames) {
		return fmt.Errorf("prepare: %w: sharp frame %d, but only %d frames", emath.ErrInput, b.SharpIndex, len(b.Frames))
	}

	b.orderFrames()

	sizers := []emath.Sizer{}
	for i := range b.Frames {
		f := &b.Frames[i]
		img := resizeFrame(f.LoadedImage, b.ResizeScale, b.ResizeMultiple)
		f.Raster = emath.RasterFromImage(img)
		sizers = append(sizers, f.Raster)
	}
	if err := emath.CheckSameSize("prepare", sizers...); err != nil {
		return err
	}

	if b.Verbosity > 0 {
		log.Printf("Frames loaded and prepared: %s", b)
	}
	return nil
}

type flowJob struct {
	// Inputs for the job
	Index int

	// Output
	Field flow.Field
	Err   error
}

// EstimateFlows runs the flow estimator over each adjacent pair of
// frames, in a pool of goroutines. With a store, fields are looked up
// before being estimated, and saved after.
func (b *Burst) EstimateFlows(ctx context.Context) error {
	est, err := b.GetFlowEstimator()
	if err != nil {
		return err
	}
	if b.Store != nil {
		est = store.CachedEstimator(ctx, b.Store, b.FlowMethod, est)
	}

	nPairs := len(b.Frames) - 1
	log.Printf("Estimating flow (%s) over %d frame pairs", b.FlowMethod, nPairs)

	jobsChan := make(chan flowJob, nPairs)
	resultsChan := make(chan flowJob, nPairs)

	nWorkers := b.Workers
	if nWorkers <= 0 || nWorkers > nPairs {
		nWorkers = nPairs
	}
	for i := 0; i < nWorkers; i++ {
		go func() {
			for job := range jobsChan {
				if err := ctx.Err(); err != nil {
					job.Err = err
				} else {
					job.Field, job.Err = est(b.Frames[job.Index].Raster, b.Frames[job.Index+1].Raster)
				}
				resultsChan <- job
			}
		}()
	}

	for i := 0; i < nPairs; i++ {
		jobsChan <- flowJob{Index: i}
	}
	close(jobsChan)

	b.Fields = make([]flow.Field, nPairs)
	var firstErr error
	for i := 0; i < nPairs; i++ {
		job := <-resultsChan
		if job.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flow pair %d (%s -> %s): %w", job.Index,
				b.Frames[job.Index].Filename(), b.Frames[job.Index+1].Filename(), job.Err)
		}
		b.Fields[job.Index] = job.Field
		b.progress("flow", i+1, nPairs)
	}
	if firstErr != nil {
		b.Fields = nil
		return firstErr
	}

	if b.Verbosity > 1 {
		for i, f := range b.Fields {
			name := b.dumpPath(fmt.Sprintf("flow_%03d.png", i))
			if err := imaging.Save(flow.Visualize(f), name); err != nil {
				log.Printf("flow dump %s: %v", name, err)
			}
		}
	}
	return nil
}

// FuseMotion turns the flow fields into the motion weight mask.
func (b *Burst) FuseMotion() error {
	F, FRef, err := motion.Fuse(b.Fields, b.Fusion)
	if err != nil {
		return err
	}
	W, err := motion.Weights(F, FRef, b.Weights)
	if err != nil {
		return err
	}
	b.Motion, b.MotionRef, b.MotionWeights = F, FRef, W

	if b.Verbosity > 0 {
		motion.Summarize(F)
	}
	if b.Verbosity > 1 {
		b.dumpGrid(F, "motion magnitude", "motion_magnitude.png")
		b.dumpGrid(W, "motion weights", "motion_weights.png")
		if err := motion.PlotHistogram(F, "motion magnitude", b.dumpPath("motion_histogram.png")); err != nil {
			log.Printf("%v", err)
		}
	}
	return nil
}

func (b *Burst) dumpGrid(g emath.FloatGrid, title, name string) {
	if err := g.ToImg(title, b.dumpPath(name)); err != nil {
		log.Printf("dump %s: %v", name, err)
	}
}

// BuildSubjectMask reads the user's mask file if there is one, else runs
// the detectors over the sharp frame.
func (b *Burst) BuildSubjectMask() error {
	sharp := b.Sharp()

	if b.SubjectMaskFile != "" {
		img, err := imaging.Open(b.SubjectMaskFile)
		if err != nil {
			return fmt.Errorf("subject mask '%s': %w: %v", b.SubjectMaskFile, emath.ErrResource, err)
		}
		mask := emath.GridFromImage(img)
		if mask.Dx() != sharp.Dx() || mask.Dy() != sharp.Dy() {
			mask = mask.Resize(sharp.Dx(), sharp.Dy())
		}
		b.SubjectMask = subject.Feather(mask, b.Feather)
		return nil
	}

	cfg := b.Detectors
	if cfg.Attention == nil && b.EyeCascadeFile != "" {
		cfg.Attention = subject.CascadeDetector(subject.DefaultEyeCascade(b.EyeCascadeFile))
	}
	if cfg.Head == nil && b.FaceCascadeFile != "" {
		cfg.Head = subject.CascadeDetector(subject.DefaultFaceCascade(b.FaceCascadeFile))
	}
	if cfg.Feather == 0 {
		cfg.Feather = b.Feather
	}

	mask, err := subject.Detect(sharp, cfg)
	if err != nil {
		return err
	}
	b.SubjectMask = mask
	return nil
}

// BuildFinalMask merges the motion weights with the subject mask:
//
//	normalize(max(motionWeights, subjectMask))
func (b *Burst) BuildFinalMask(ctx context.Context) error {
	if err := emath.CheckSameSize("final mask", b.MotionWeights, b.SubjectMask); err != nil {
		return err
	}
	b.FinalMask = b.MotionWeights.Max(b.SubjectMask).Normalize()

	if b.Store != nil {
		key := fmt.Sprintf("%s_flow_face_mask_%s", b.FlowMethod, store.HashRasters(b.rasters()...))
		if err := b.Store.Put(ctx, key, emath.RasterFromGrids(b.FinalMask)); err != nil {
			log.Printf("mask cache put %s: %v", key, err)
		}
	}
	if b.Verbosity > 0 {
		log.Printf("final mask: %s", b.FinalMask.Stats())
	}
	return nil
}

// Accumulate synthesizes the long exposure, and the naive mean for
// comparison.
func (b *Burst) Accumulate() error {
	cfg := b.Exposure
	cfg.Workers = b.Workers
	cfg.Verbose = b.Verbosity > 0

	rs := b.rasters()
	var err error
	if b.Workers == 1 {
		b.Blurred, err = exposure.LongExposure(rs, b.Fields, cfg)
	} else {
		b.Blurred, err = exposure.LongExposureParallel(rs, b.Fields, cfg)
	}
	if err != nil {
		return err
	}

	if b.Naive, err = exposure.NaiveMean(rs, b.SigmaClip); err != nil {
		return err
	}
	return nil
}

// Composite blends the sharp frame over the long exposure, through the
// final mask, once per selected blend mode.
func (b *Burst) Composite() error {
	modes, err := b.GetBlendModes()
	if err != nil {
		return err
	}
	if b.Results == nil {
		b.Results = map[string]emath.Raster{}
	}

	sharp := b.Sharp()
	for i, mode := range modes {
		log.Printf("Blending: %s", mode)

		var out emath.Raster
		switch mode {
		case "alpha":
			out, err = blend.Alpha(sharp, b.FinalMask, b.Blurred)
		case "poisson":
			out, err = blend.Poisson(sharp, b.FinalMask, b.Blurred, b.Config.Poisson)
		case "pyramid":
			out, err = blend.Pyramid(sharp, b.FinalMask, b.Blurred, b.Config.Pyramid)
		}
		if err != nil {
			return fmt.Errorf("blend %s: %w", mode, err)
		}
		b.Results[mode] = out
		b.progress("blend", i+1, len(modes))
	}
	return nil
}

// Run does every stage, in order, stopping at the first failure.
func (b *Burst) Run(ctx context.Context) error {
	if err := b.Prepare(); err != nil {
		return err
	}
	if err := b.EstimateFlows(ctx); err != nil {
		return err
	}
	if err := b.FuseMotion(); err != nil {
		return err
	}
	if err := b.BuildSubjectMask(); err != nil {
		return err
	}
	if err := b.BuildFinalMask(ctx); err != nil {
		return err
	}
	if err := b.Accumulate(); err != nil {
		return err
	}
	return b.Composite()
}
