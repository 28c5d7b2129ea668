package longexpo

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/longexpo/pkg/blend"
	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/exposure"
	"github.com/abworrall/longexpo/pkg/flow"
	"github.com/abworrall/longexpo/pkg/motion"
)

var (
	FlowMethods = []string{"hornschunck", "farneback", "zero"}
	BlendModes  = []string{"alpha", "poisson", "pyramid"}
)

func ListFlowMethods() string { return fmt.Sprintf("%v", FlowMethods) }
func ListBlendModes() string  { return fmt.Sprintf("%v", BlendModes) }

type Config struct {
	Verbosity int

	SharpIndex     int     // Which frame of the (ordered) burst is kept sharp
	OrderByExif    bool    // Order frames by EXIF capture time, rather than filename
	ResizeScale    float64 // Scale frames by this on load; 0 or 1 leaves them alone
	ResizeMultiple int     // Shrink frames so both sides are a multiple of this
	Workers        int     // Size of the worker pools; 0 means one per frame pair

	FlowMethod  string
	HornSchunck flow.HornSchunckConfig
	Farneback   flow.FarnebackConfig

	Fusion   motion.FusionConfig
	Weights  motion.WeightConfig
	Exposure exposure.Config
	Poisson  blend.PoissonConfig
	Pyramid  blend.PyramidConfig

	SigmaClip float64 // For the naive mean; 0 is a plain mean

	SubjectMaskFile string // A mask image to use instead of running detectors
	EyeCascadeFile  string // Haar cascades, only used in gocv builds
	FaceCascadeFile string
	Feather         float64 // Gaussian sigma applied to the subject mask

	Blends string // Comma separated blend modes, or "all"

	FlowCacheDir string
	RedisAddr    string
	RedisTTL     time.Duration

	OutputDir string
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

func NewConfig() Config {
	return Config{
		ResizeScale: 1,
		FlowMethod:  "hornschunck",
		HornSchunck: flow.DefaultHornSchunckConfig(),
		Farneback:   flow.DefaultFarnebackConfig(),
		Fusion:      motion.DefaultFusionConfig(),
		Weights:     motion.DefaultWeightConfig(),
		Exposure:    exposure.DefaultConfig(),
		Poisson:     blend.DefaultPoissonConfig(),
		Pyramid:     blend.DefaultPyramidConfig(),
		Blends:      "all",
		OutputDir:   ".",
	}
}

// Validate catches bad settings before any of the slow stages start.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if _, err := c.GetFlowEstimator(); err != nil {
		return err
	}
	if _, err := c.GetBlendModes(); err != nil {
		return err
	}
	if c.ResizeScale < 0 {
		return fmt.Errorf("config: %w: negative resize scale %f", emath.ErrInput, c.ResizeScale)
	}
	if c.Exposure.Steps < 1 {
		return fmt.Errorf("config: %w: need at least 1 interpolation step, got %d", emath.ErrInput, c.Exposure.Steps)
	}
	if c.Pyramid.Depth < 1 {
		return fmt.Errorf("config: %w: pyramid depth %d", emath.ErrInput, c.Pyramid.Depth)
	}
	return nil
}

func (c Config) GetFlowEstimator() (flow.Estimator, error) {
	switch c.FlowMethod {
	case "hornschunck":
		return flow.HornSchunck(c.HornSchunck), nil
	case "farneback":
		if !flow.FarnebackAvailable {
			return nil, fmt.Errorf("config: %w: flow method 'farneback' needs a gocv build", emath.ErrInput)
		}
		return flow.Farneback(c.Farneback), nil
	case "zero":
		return flow.Zero, nil
	default:
		return nil, fmt.Errorf("config: %w: no flow method named '%s', wanted %s", emath.ErrInput, c.FlowMethod, ListFlowMethods())
	}
}

// GetBlendModes parses the Blends setting into known mode names, in the
// order given.
func (c Config) GetBlendModes() ([]string, error) {
	if c.Blends == "all" {
		return BlendModes, nil
	}

	modes := []string{}
	for _, m := range strings.Split(c.Blends, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		known := false
		for _, b := range BlendModes {
			if m == b {
				known = true
			}
		}
		if !known {
			return nil, fmt.Errorf("config: %w: no blend mode named '%s', wanted %s", emath.ErrInput, m, ListBlendModes())
		}
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("config: %w: no blend modes selected", emath.ErrInput)
	}
	return modes, nil
}
