package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/k0kubun/go-ansi"
	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"

	"github.com/abworrall/longexpo/pkg/longexpo"
	"github.com/abworrall/longexpo/pkg/motion"
	"github.com/abworrall/longexpo/pkg/store"
)

var (
	fVerbosity   int
	fSharpIndex  int
	fFlowMethod  string
	fSteps       int
	fBlends      string
	fReference   string
	fPercentile  float64
	fAlpha       float64
	fBeta        float64
	fScale       float64
	fMultiple    int
	fOrderByExif bool
	fMaskFile    string
	fEyeCascade  string
	fFaceCascade string
	fFeather     float64
	fSigmaClip   float64
	fWorkers     int
	fCacheDir    string
	fRedisAddr   string
	fOutputDir   string
)

func init() {
	def := longexpo.NewConfig()

	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.IntVar(&fSharpIndex, "sharp", def.SharpIndex, "which frame (after ordering) stays sharp")
	flag.StringVar(&fFlowMethod, "flow", def.FlowMethod, "optical flow method: "+longexpo.ListFlowMethods())
	flag.IntVar(&fSteps, "steps", def.Exposure.Steps, "interpolation steps per frame pair (1 means no in-betweens)")
	flag.StringVar(&fBlends, "blend", def.Blends, "comma separated blend modes, or 'all': "+longexpo.ListBlendModes())
	flag.StringVar(&fReference, "reference", def.Fusion.Reference, "motion reference statistic: "+motion.ListReferences())
	flag.Float64Var(&fPercentile, "percentile", def.Fusion.Percentile, "percentile (0.0->1.0) for the 'percentile' reference")
	flag.Float64Var(&fAlpha, "alpha", def.Weights.Alpha, "motion below alpha*reference gets no weight")
	flag.Float64Var(&fBeta, "beta", def.Weights.Beta, "motion above beta*reference gets full weight")
	flag.Float64Var(&fScale, "scale", def.ResizeScale, "resize frames by this on load")
	flag.IntVar(&fMultiple, "multiple", def.ResizeMultiple, "shrink frames so both sides are a multiple of this")
	flag.BoolVar(&fOrderByExif, "exif", def.OrderByExif, "order frames by EXIF capture time, not filename")
	flag.StringVar(&fMaskFile, "mask", "", "subject mask image, instead of running detectors")
	flag.StringVar(&fEyeCascade, "eyes", "", "haar cascade for eyes (gocv builds only)")
	flag.StringVar(&fFaceCascade, "faces", "", "haar cascade for faces (gocv builds only)")
	flag.Float64Var(&fFeather, "feather", def.Feather, "gaussian sigma to soften the subject mask")
	flag.Float64Var(&fSigmaClip, "sigmaclip", def.SigmaClip, "sigma clipping for the naive mean, 0 for none")
	flag.IntVar(&fWorkers, "workers", def.Workers, "worker pool size, 0 for one per frame pair")
	flag.StringVar(&fCacheDir, "cache", "", "directory to cache flow fields in")
	flag.StringVar(&fRedisAddr, "redis", "", "redis host:port to cache flow fields in")
	flag.StringVar(&fOutputDir, "out", def.OutputDir, "directory for the outputs")
	flag.Parse()

	log.Printf("longexpo starting\n")
}

// applyFlags copies the flags the user actually set over the config, so
// a .yaml file among the inputs provides the defaults.
func applyFlags(c *longexpo.Config) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	apply := map[string]func(){
		"v":          func() { c.Verbosity = fVerbosity },
		"sharp":      func() { c.SharpIndex = fSharpIndex },
		"flow":       func() { c.FlowMethod = fFlowMethod },
		"steps":      func() { c.Exposure.Steps = fSteps },
		"blend":      func() { c.Blends = fBlends },
		"reference":  func() { c.Fusion.Reference = fReference },
		"percentile": func() { c.Fusion.Percentile = fPercentile },
		"alpha":      func() { c.Weights.Alpha = fAlpha },
		"beta":       func() { c.Weights.Beta = fBeta },
		"scale":      func() { c.ResizeScale = fScale },
		"multiple":   func() { c.ResizeMultiple = fMultiple },
		"exif":       func() { c.OrderByExif = fOrderByExif },
		"mask":       func() { c.SubjectMaskFile = fMaskFile },
		"eyes":       func() { c.EyeCascadeFile = fEyeCascade },
		"faces":      func() { c.FaceCascadeFile = fFaceCascade },
		"feather":    func() { c.Feather = fFeather },
		"sigmaclip":  func() { c.SigmaClip = fSigmaClip },
		"workers":    func() { c.Workers = fWorkers },
		"cache":      func() { c.FlowCacheDir = fCacheDir },
		"redis":      func() { c.RedisAddr = fRedisAddr },
		"out":        func() { c.OutputDir = fOutputDir },
	}
	for name := range set {
		if f, ok := apply[name]; ok {
			f()
		}
	}
}

// openStore picks the flow cache; it is only an accelerator, so a
// redis that can't be reached just means running without one.
func openStore(ctx context.Context, c longexpo.Config) (store.Store, func()) {
	switch {
	case c.RedisAddr != "":
		rs := store.NewRedisStore(store.RedisConfig{Addr: c.RedisAddr, TTL: c.RedisTTL})
		if err := rs.Ping(ctx); err != nil {
			colorstring.Printf("[yellow]no flow cache[reset]: %v\n", err)
			rs.Close()
			return nil, func() {}
		}
		return rs, func() { rs.Close() }

	case c.FlowCacheDir != "":
		return store.NewFileStore(c.FlowCacheDir), func() {}
	}
	return nil, func() {}
}

func newProgress() longexpo.ProgressFunc {
	bars := map[string]*progressbar.ProgressBar{}
	return func(stage string, done, total int) {
		bar, ok := bars[stage]
		if !ok {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(15),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan][%s][reset]", stage)),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}))
			bars[stage] = bar
		}
		bar.Set(done)
	}
}

func main() {
	ctx := context.Background()

	b := longexpo.NewBurst()
	if err := b.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	applyFlags(&b.Config)

	if b.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", b.Config.AsYaml())
	}

	s, closeStore := openStore(ctx, b.Config)
	defer closeStore()
	b.Store = s
	b.Progress = newProgress()

	colorstring.Printf("[cyan]longexpo[reset]: %d frames, flow [green]%s[reset], blend [green]%s[reset]\n",
		len(b.Frames), b.FlowMethod, b.Blends)

	if err := b.Run(ctx); err != nil {
		log.Fatal(err)
	}
	if err := b.WriteOutputs(); err != nil {
		log.Fatal(err)
	}

	color.Output = ansi.NewAnsiStdout()
	color.Green("sharp frame: %s", b.Frames[b.SharpIndex].Filename())
	for _, mode := range longexpo.BlendModes {
		if _, ok := b.Results[mode]; ok {
			color.Green("wrote %s", filepath.Join(b.OutputDir, longexpo.OutputName(mode)))
		}
	}
}
