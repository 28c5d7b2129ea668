package store

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"math"

	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/flow"
)

// A Store keeps encoded rasters (flow fields, masks) by key. A missing
// key is a miss, not an error. Stores are only ever an accelerator:
// nothing in the pipeline needs one.
type Store interface {
	Get(ctx context.Context, key string) (emath.Raster, bool, error)
	Put(ctx context.Context, key string, r emath.Raster) error
}

// HashRasters returns the md5 of the rasters' sizes and contents, in hex.
func HashRasters(rs ...emath.Raster) string {
	h := md5.New()
	buf := make([]byte, 8)
	for _, r := range rs {
		for _, dim := range []int{r.Dx(), r.Dy(), r.NumChannels()} {
			binary.LittleEndian.PutUint64(buf, uint64(dim))
			h.Write(buf)
		}
		for _, p := range r.Planes {
			for _, v := range p.Values() {
				binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
				h.Write(buf)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FlowKey names the cached flow between two frames.
func FlowKey(method string, a, b emath.Raster) string {
	return fmt.Sprintf("%s_flowmap_%s", method, HashRasters(a, b))
}

// CachedEstimator wraps an estimator with a store. Store failures are
// logged and the estimator is run anyway; estimator failures are
// returned as they are.
func CachedEstimator(ctx context.Context, s Store, method string, est flow.Estimator) flow.Estimator {
	return func(a, b emath.Raster) (flow.Field, error) {
		key := FlowKey(method, a, b)

		if r, ok, err := s.Get(ctx, key); err != nil {
			log.Printf("flow cache get %s: %v", key, err)
		} else if ok {
			if f, err := flow.FieldFromRaster(r); err != nil {
				log.Printf("flow cache entry %s: %v", key, err)
			} else if f.Dx() != a.Dx() || f.Dy() != a.Dy() {
				log.Printf("flow cache entry %s is %dx%d, frames are %dx%d", key, f.Dx(), f.Dy(), a.Dx(), a.Dy())
			} else {
				return f, nil
			}
		}

		f, err := est(a, b)
		if err != nil {
			return f, err
		}

		if err := s.Put(ctx, key, f.AsRaster()); err != nil {
			log.Printf("flow cache put %s: %v", key, err)
		}
		return f, nil
	}
}
