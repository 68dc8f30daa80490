package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"wildwatch/internal/app"
	"wildwatch/internal/catalog"
	"wildwatch/internal/config"
	"wildwatch/internal/logger"
	"wildwatch/internal/service"
	"wildwatch/internal/service/storage"
)

func main() {
	cfg := config.Load()

	input := flag.String("in", "", "Video file to annotate")
	output := flag.String("out", "", "Annotated output path (default: <in>_annotated<ext>)")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "ONNX model path")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML label catalog")
	flag.StringVar(&cfg.OutputCodec, "codec", cfg.OutputCodec, "FourCC of the output video")
	flag.StringVar(&cfg.OutputExtension, "ext", cfg.OutputExtension, "Extension of the output video")
	flag.Float64Var(&cfg.ConfidenceThreshold, "conf", cfg.ConfidenceThreshold, "Confidence threshold")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *output == "" {
		*output = strings.TrimSuffix(*input, filepath.Ext(*input)) + "_annotated" + cfg.OutputExtension
	}
	cfg.DetectorPoolSize = 1
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logs := logger.NewWriterLogger(os.Stderr)

	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	pool, err := app.NewDetectorPool(cfg, cat)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer pool.Close()

	tempStore, err := storage.NewTempStore(cfg.TempDirectory, cfg.TempMaxAge, logs)
	if err != nil {
		log.Fatalf("Failed to prepare temp directory: %v", err)
	}

	src, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Annotating %s with %s\n", *input, cfg.ModelPath)

	manager := service.NewManager(pool, cat, tempStore, nil, nil, nil, cfg, logs)
	result, err := manager.ProcessVideo(ctx, src, *input)
	if err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	data, err := base64.StdEncoding.DecodeString(result.ProcessedVideo)
	if err != nil {
		log.Fatalf("Failed to decode output: %v", err)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	labels := make([]string, 0, len(result.Statistics))
	for label := range result.Statistics {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	fmt.Printf("✅ %d frames, %d detections -> %s\n", result.FramesProcessed, result.TotalDetections, *output)
	for _, label := range labels {
		fmt.Printf("   %-12s %d\n", label, result.Statistics[label])
	}
}
