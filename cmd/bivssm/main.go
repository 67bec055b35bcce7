package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"bivssm/internal/logger"
	"bivssm/pkg/config"
	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm"
	"bivssm/pkg/surfacegen"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Path to a YAML config file")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this path and exit")
	inputDir := flag.String("input", "", "Directory containing SSM.bin and mean_shape.vtk")
	outputDir := flag.String("output", "", "Directory to write the synthetic meshes to")
	count := flag.Int("n", 0, "Number of meshes to generate")
	components := flag.Int("k", 0, "Number of leading modes to sample (0 for all)")
	boundary := flag.Float64("boundary", 0, "Maximum standard deviations per mode")
	policy := flag.String("policy", "", "Bounding policy: none, clip or resample")
	seed := flag.Uint64("seed", 0, "Random seed")
	workers := flag.Int("workers", 0, "Number of meshes written in parallel")
	format := flag.String("format", "", "Output format: vtk or stl")
	plots := flag.Bool("plots", false, "Write coefficient histograms and projection previews")
	catalogDB := flag.Bool("catalog", false, "Record instances in an SQLite catalog")
	mkdir := flag.Bool("mkdir", false, "Create the output directory if it does not exist")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")
	logFile := flag.String("log-file", "", "Also write JSON logs to this rotated file")
	flag.Parse()

	// Defaults < config file < flags
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var flagErr error
	var boundarySet, policySet bool
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Dir = *inputDir
		case "output":
			cfg.Output.Dir = *outputDir
		case "n":
			cfg.Sampling.Count = *count
		case "k":
			cfg.Sampling.Components = *components
		case "boundary":
			boundarySet = true
			cfg.Sampling.Boundary = *boundary
		case "policy":
			policySet = true
			p, err := sampling.ParsePolicy(*policy)
			if err != nil {
				flagErr = err
			}
			cfg.Sampling.Policy = p
		case "seed":
			cfg.Sampling.Seed = *seed
		case "workers":
			cfg.Output.Workers = *workers
		case "format":
			cfg.Output.Format = *format
		case "plots":
			cfg.Output.Plots = *plots
		case "catalog":
			cfg.Output.Catalog = *catalogDB
		case "mkdir":
			cfg.Output.CreateDir = *mkdir
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-file":
			cfg.Logging.File = *logFile
		}
	})
	if flagErr != nil {
		log.Fatalf("Invalid flag: %v", flagErr)
	}
	if boundarySet && !policySet {
		negativeBoundaryUnbounded(cfg)
	}

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Configuration written to: %s\n", *writeConfig)
		return
	}

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatalf("Failed to initialise logging: %v", err)
	}
	defer logger.Sync()

	fmt.Println("================================")
	fmt.Println("SYNTHETIC BIVENTRICULAR SURFACE MESHES FROM A STATISTICAL SHAPE MODEL")
	fmt.Println("================================")

	startTime := time.Now()
	res, err := surfacegen.Generate(paramsFromConfig(cfg))
	if err != nil && res == nil {
		logger.Error("Generation failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	processingTime := time.Since(startTime)

	written := 0
	for _, f := range res.Files {
		if f != "" {
			written++
		}
	}
	fmt.Printf("\nGenerated %d of %d meshes in %.2f seconds\n", written, cfg.Sampling.Count, processingTime.Seconds())
	fmt.Printf("Output directory: %s\n", cfg.Output.Dir)
	fmt.Printf("Run id: %s\n", res.RunID)
	fmt.Printf("Modes sampled: %d (%.1f%% of variance)\n", res.Components, 100*res.RetainedVariance)
	for _, extra := range res.Extras {
		fmt.Printf("- %s\n", extra)
	}

	if err != nil {
		logger.Error("Some meshes could not be written", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// negativeBoundaryUnbounded turns a negative boundary such as -1 into the
// none policy, so "-boundary -1" disables bounding.
func negativeBoundaryUnbounded(cfg *config.Config) {
	if cfg.Sampling.Boundary < 0 {
		cfg.Sampling.Policy = sampling.PolicyNone
	}
}

func paramsFromConfig(cfg *config.Config) surfacegen.Params {
	return surfacegen.Params{
		InputDir: cfg.Input.Dir,
		Model: ssm.Options{
			ModelFile: cfg.Input.ModelFile,
			MeshFile:  cfg.Input.MeshFile,
			TagArray:  cfg.Input.TagArray,
		},
		OutputDir:       cfg.Output.Dir,
		CreateOutputDir: cfg.Output.CreateDir,
		Count:           cfg.Sampling.Count,
		Components:      cfg.Sampling.Components,
		Bound:           cfg.Bound(),
		Seed:            cfg.Sampling.Seed,
		Workers:         cfg.Output.Workers,
		Format:          surfacegen.Format(cfg.Output.Format),
		Manifest:        cfg.Output.Manifest,
		Catalog:         cfg.Output.Catalog,
		Plots:           cfg.Output.Plots,
		Logger:          logger.Log,
	}
}
