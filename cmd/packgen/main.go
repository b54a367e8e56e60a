// Command packgen runs a single sphere-packing generation task: it loads a
// GenerationConfig from a YAML file, wires the requested algorithm onto the
// packing core, runs it to completion, and writes the resulting packing to
// a binary file. It is the one place in the repository that parses files,
// exposes metrics, or otherwise acts as an "external collaborator" in the
// sense of spec §1/§6 — the core package itself never imports any of this.
package main

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/latticeforge/packgen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath string
	outputPath string
	metricsAddr string
	debug      bool
)

var (
	iterationsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "packgen_iterations_total",
		Help: "Iterations performed by the most recent generation task.",
	})
	achievedPorosityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "packgen_achieved_porosity",
		Help: "Porosity achieved at termination of the most recent generation task.",
	})
)

func main() {
	root := &cobra.Command{
		Use:   "packgen",
		Short: "Generate dense periodic sphere packings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(runCmd())
	root.AddCommand(validateConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a generation task to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := packing.Logger(packing.NewDefaultLogger("packgen", debug))
			if metricsAddr != "" {
				go serveMetrics(metricsAddr, logger)
			}

			engine, err := buildEngine(cfg, logger)
			if err != nil {
				return err
			}
			driver := packing.NewDriver(engine, cfg, logger)

			initial := randomInitialPacking(cfg)
			info, err := driver.Run(initial)
			if err != nil {
				return err
			}

			iterationsGauge.Set(float64(info.Iterations))
			achievedPorosityGauge.Set(info.AchievedPorosity)

			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := packing.WritePacking(f, initial); err != nil {
					return err
				}
			}

			logger.Info("task complete",
				"iterations", info.Iterations,
				"theoreticalPorosity", info.TheoreticalPorosity,
				"achievedPorosity", info.AchievedPorosity)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a GenerationConfig YAML file")
	cmd.Flags().StringVar(&outputPath, "out", "", "path to write the resulting packing (binary format)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve a Prometheus /metrics endpoint on, e.g. :9090 (disabled when empty)")
	cmd.MarkFlagRequired("config")
	return cmd
}

func validateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate a GenerationConfig YAML file without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a GenerationConfig YAML file")
	cmd.MarkFlagRequired("config")
	return cmd
}

// fileConfig is the on-disk YAML shape; it is translated into
// packing.GenerationConfig rather than letting YAML tags leak into the
// core's own struct.
type fileConfig struct {
	ParticlesCount int       `yaml:"particlesCount"`
	BoxSize        [3]float64 `yaml:"boxSize"`
	TargetDensity  float64   `yaml:"targetDensity"`
	TargetPorosity float64   `yaml:"targetPorosity"`
	Algorithm      string    `yaml:"algorithm"`
	Seed           uint64    `yaml:"seed"`

	ContractionRate               float64 `yaml:"contractionRate"`
	FinalContractionRate          float64 `yaml:"finalContractionRate"`
	ContractionRateDecreaseFactor float64 `yaml:"contractionRateDecreaseFactor"`

	StepsToWrite      int `yaml:"stepsToWrite"`
	MinNeighborsCount int `yaml:"minNeighborsCount"`
}

var algorithmsByName = map[string]packing.Algorithm{
	"ls-simple":          packing.AlgorithmLSSimple,
	"ls-gradual":         packing.AlgorithmLSGradual,
	"fb":                 packing.AlgorithmFB,
	"jt-original":        packing.AlgorithmJTOriginal,
	"jt-khirevich":       packing.AlgorithmJTKhirevich,
	"closest-jamming":    packing.AlgorithmClosestJamming,
	"monte-carlo":        packing.AlgorithmMonteCarlo,
	"conjugate-gradient": packing.AlgorithmConjugateGradient,
}

func loadConfig(path string) (packing.GenerationConfig, error) {
	var empty packing.GenerationConfig
	f, err := os.Open(path)
	if err != nil {
		return empty, err
	}
	defer f.Close()

	var fc fileConfig
	if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
		return empty, fmt.Errorf("parsing %s: %w", path, err)
	}

	algo, ok := algorithmsByName[fc.Algorithm]
	if !ok {
		return empty, fmt.Errorf("unknown algorithm %q", fc.Algorithm)
	}

	return packing.GenerationConfig{
		ParticlesCount:                fc.ParticlesCount,
		BoxSize:                       fc.BoxSize,
		TargetDensity:                 fc.TargetDensity,
		TargetPorosity:                fc.TargetPorosity,
		Algorithm:                     algo,
		Seed:                          fc.Seed,
		ContractionRate:               fc.ContractionRate,
		FinalContractionRate:          fc.FinalContractionRate,
		ContractionRateDecreaseFactor: fc.ContractionRateDecreaseFactor,
		StepsToWrite:                  fc.StepsToWrite,
		MinNeighborsCount:             fc.MinNeighborsCount,
	}, nil
}

// buildEngine wires the tagged-variant step engine the config selects. Monte
// Carlo and conjugate-gradient selectors are accepted by Validate (spec §6
// lists them as valid selectors) but have no step-engine implementation in
// this core; selecting either is reported as a configuration
// error here, at the boundary, rather than deep inside a Displace call.
func buildEngine(cfg packing.GenerationConfig, logger packing.Logger) (packing.StepEngine, error) {
	domain := cfg.Domain()
	switch cfg.Algorithm {
	case packing.AlgorithmLSSimple:
		return packing.NewLSStep(domain, packing.LSSimple, logger), nil
	case packing.AlgorithmLSGradual:
		return packing.NewLSStep(domain, packing.LSGradual, logger), nil
	case packing.AlgorithmFB:
		return packing.NewRelaxationStep(domain, packing.VariantFB, logger), nil
	case packing.AlgorithmJTOriginal:
		return packing.NewRelaxationStep(domain, packing.VariantJTOriginal, logger), nil
	case packing.AlgorithmJTKhirevich:
		return packing.NewRelaxationStep(domain, packing.VariantJTKhirevich, logger), nil
	case packing.AlgorithmClosestJamming:
		return packing.NewClosestJammingStep(domain, logger), nil
	default:
		return nil, fmt.Errorf("algorithm %q has no step-engine implementation in this core", cfg.Algorithm.String())
	}
}

// randomInitialPacking scatters ParticlesCount unit-diameter particles
// uniformly at random in the configured box, seeded from cfg.Seed. Real
// deployments would read a loose starting packing from a file (out of core
// scope per spec §1); this is the minimal initial state a CLI invocation
// needs to exercise an algorithm end to end.
func randomInitialPacking(cfg packing.GenerationConfig) *packing.Packing {
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xD1B54A32D192ED03))
	p := packing.NewPacking(cfg.ParticlesCount)
	domain := cfg.Domain()
	for i := 0; i < cfg.ParticlesCount; i++ {
		raw := mgl64.Vec3{
			r.Float64() * cfg.BoxSize[0],
			r.Float64() * cfg.BoxSize[1],
			r.Float64() * cfg.BoxSize[2],
		}
		p.Set(packing.ParticleIndex(i), packing.Particle{Diameter: 1, Center: domain.EnsureBoundaries(raw)})
	}
	return p
}

func serveMetrics(addr string, logger packing.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint stopped", "err", err)
	}
}
