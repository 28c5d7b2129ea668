package exposure

import (
	"fmt"
	"log"
	"sync"

	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/flow"
)

// Config controls how the long exposure is synthesized.
type Config struct {
	Steps   int // in-between frames per pair is Steps-1
	Workers int // for the parallel accumulation; <=0 means one per pair
	Verbose bool
}

func DefaultConfig() Config {
	return Config{Steps: 15}
}

// An Accumulator is a running weighted average over frames. It is a
// plain value: Add returns the updated accumulator, and leaves the
// receiver alone.
type Accumulator struct {
	Image  emath.Raster
	Weight float64
}

// Add folds a batch of frames into the average:
//
//	image  = (weight*image + sum(batch)) / (weight + len(batch))
//	weight = weight + len(batch)
func (acc Accumulator) Add(batch []emath.Raster) (Accumulator, error) {
	if len(batch) == 0 {
		return acc, nil
	}
	sum, err := sumFrames(batch)
	if err != nil {
		return acc, err
	}
	n := float64(len(batch))

	if acc.Weight == 0 {
		return Accumulator{Image: sum.Scale(1 / n), Weight: n}, nil
	}
	if err := emath.CheckSameSize("accumulate", acc.Image, sum); err != nil {
		return acc, err
	}
	if err := checkChannels("accumulate", acc.Image, sum); err != nil {
		return acc, err
	}

	next := acc.Image.Scale(acc.Weight)
	next.AddInto(sum)
	return Accumulator{Image: next.Scale(1 / (acc.Weight + n)), Weight: acc.Weight + n}, nil
}

func sumFrames(frames []emath.Raster) (emath.Raster, error) {
	sizers := make([]emath.Sizer, len(frames))
	for i := range frames {
		sizers[i] = frames[i]
	}
	if err := emath.CheckSameSize("accumulate", sizers...); err != nil {
		return emath.Raster{}, err
	}

	if err := checkChannels("accumulate", frames...); err != nil {
		return emath.Raster{}, err
	}

	sum := frames[0].Copy()
	for _, f := range frames[1:] {
		sum.AddInto(f)
	}
	return sum, nil
}

// checkChannels returns a wrapped ErrSizeMismatch if any raster's
// channel count differs from the first's.
func checkChannels(stage string, rs ...emath.Raster) error {
	for i := 1; i < len(rs); i++ {
		if rs[i].NumChannels() != rs[0].NumChannels() {
			return fmt.Errorf("%s: %w: item %d has %d channels, item 0 has %d", stage, emath.ErrSizeMismatch,
				i, rs[i].NumChannels(), rs[0].NumChannels())
		}
	}
	return nil
}

func checkBurst(frames []emath.Raster, fields []flow.Field) error {
	if len(fields) != len(frames)-1 {
		return fmt.Errorf("long exposure: %w: %d frames need %d flow fields, got %d", emath.ErrInput,
			len(frames), len(frames)-1, len(fields))
	}
	sizers := []emath.Sizer{}
	for i := range frames {
		sizers = append(sizers, frames[i])
	}
	for i := range fields {
		sizers = append(sizers, fields[i])
	}
	if err := emath.CheckSameSize("long exposure", sizers...); err != nil {
		return err
	}
	return checkChannels("long exposure", frames...)
}

// LongExposure streams over the burst in order, folding each real frame
// together with the in-betweens that lead up to it into the running
// average. Only one pair's synthetic frames are held at a time. An
// empty burst gives an empty raster.
func LongExposure(frames []emath.Raster, fields []flow.Field, cfg Config) (emath.Raster, error) {
	if len(frames) == 0 {
		return emath.Raster{}, nil
	}
	if err := checkBurst(frames, fields); err != nil {
		return emath.Raster{}, err
	}

	acc, err := Accumulator{}.Add(frames[:1])
	if err != nil {
		return emath.Raster{}, err
	}

	for i := 1; i < len(frames); i++ {
		batch, err := InBetween(frames[i-1], frames[i], fields[i-1], cfg.Steps)
		if err != nil {
			return emath.Raster{}, fmt.Errorf("long exposure pair %d: %w", i-1, err)
		}
		batch = append(batch, frames[i])

		if acc, err = acc.Add(batch); err != nil {
			return emath.Raster{}, fmt.Errorf("long exposure pair %d: %w", i-1, err)
		}
		if cfg.Verbose {
			log.Printf("long exposure: pair %d folded in, weight now %.0f", i-1, acc.Weight)
		}
	}

	return acc.Image, nil
}

type pairJob struct {
	// Inputs for the job
	Index int

	// Output
	Sum   emath.Raster
	Count int
	Err   error
}

// LongExposureParallel computes the same average as LongExposure, as a
// sum over all frames divided by their count. Each pair's in-betweens
// are generated and summed by a pool of goroutines.
func LongExposureParallel(frames []emath.Raster, fields []flow.Field, cfg Config) (emath.Raster, error) {
	if len(frames) == 0 {
		return emath.Raster{}, nil
	}
	if err := checkBurst(frames, fields); err != nil {
		return emath.Raster{}, err
	}
	if cfg.Steps < 1 {
		return emath.Raster{}, fmt.Errorf("long exposure: %w: need at least 1 step, got %d", emath.ErrInput, cfg.Steps)
	}

	var wg sync.WaitGroup
	nPairs := len(frames) - 1
	jobsChan := make(chan pairJob, nPairs)
	resultsChan := make(chan pairJob, nPairs)

	nWorkers := cfg.Workers
	if nWorkers <= 0 || nWorkers > nPairs {
		nWorkers = nPairs
	}
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobsChan {
				i := job.Index
				batch, err := InBetween(frames[i], frames[i+1], fields[i], cfg.Steps)
				if err == nil {
					batch = append(batch, frames[i+1])
					job.Sum, job.Err = sumFrames(batch)
					job.Count = len(batch)
				} else {
					job.Err = err
				}
				resultsChan <- job
			}
		}()
	}

	for i := 0; i < nPairs; i++ {
		jobsChan <- pairJob{Index: i}
	}
	close(jobsChan)
	wg.Wait()
	close(resultsChan)

	total := frames[0].Copy()
	count := 1
	for result := range resultsChan {
		if result.Err != nil {
			return emath.Raster{}, fmt.Errorf("long exposure pair %d: %w", result.Index, result.Err)
		}
		total.AddInto(result.Sum)
		count += result.Count
	}

	return total.Scale(1 / float64(count)), nil
}
