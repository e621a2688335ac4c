// Command framescrub works with scroll-scrubbed frame sequences: it prepares sequences from
// PDFs, image folders or synthetic test cards, sweeps a simulated page to check them, and
// previews them in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gogpu/gg"

	"github.com/ivlev/framescrub/internal/config"
	"github.com/ivlev/framescrub/internal/extract"
	"github.com/ivlev/framescrub/internal/host/headless"
	"github.com/ivlev/framescrub/internal/host/term"
	"github.com/ivlev/framescrub/internal/scrubber"
	"github.com/ivlev/framescrub/internal/sequence"
	"github.com/ivlev/framescrub/internal/source"
	"github.com/ivlev/framescrub/internal/system"
	"github.com/ivlev/framescrub/internal/testcard"
	"github.com/ivlev/framescrub/internal/video"
)

const usage = `usage: framescrub <command> [flags]

commands:
  sweep     scroll a simulated page top to bottom and record the surface
  extract   write a numbered frame sequence from a PDF or image folder
  testcard  generate a numbered QR test-card sequence
  preview   scrub a sequence in the terminal
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "sweep":
		err = runSweep(ctx, args)
	case "extract":
		err = runExtract(ctx, args)
	case "testcard":
		err = runTestcard(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "[-] unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("[!] Interrupted")
		return
	}
	if err != nil {
		log.Fatalf("[-] %s: %v", os.Args[1], err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	gg.SetLogger(logger)
	system.InitResourceLimits(logger)
	return logger
}

// loadConfig reads path, or returns defaults when path is empty. Relative frame paths
// resolve against the config file's directory unless root is set.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = filepath.Dir(path)
	}
	return cfg, nil
}

func newController(page *headless.Page, cfg *config.Config, logger *slog.Logger) (*scrubber.Controller, error) {
	return scrubber.FromConfig(page, source.NewLoader(cfg.Root), cfg,
		scrubber.WithPreloadWorkers(system.PreloadWorkers()),
		scrubber.WithLogger(logger))
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config with srcs, sizes and total_frames")
	outPtr := fs.String("out", "", "Output .mp4 file or PNG directory (default: output/sweep_<time>.mp4)")
	stepsPtr := fs.Int("steps", 0, "Scroll positions between top and bottom (0: from config)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *stepsPtr > 0 {
		cfg.Steps = *stepsPtr
	}
	if *outPtr != "" {
		cfg.Output = *outPtr
	}
	if cfg.Output == "" {
		os.MkdirAll("output", 0755)
		cfg.Output = filepath.Join("output", fmt.Sprintf("sweep_%s.mp4", time.Now().Format("2006-01-02_15-04-05")))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	page := headless.New(cfg, nil)
	c, err := newController(page, cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect()
	fmt.Printf("[*] Template: %s (frames 0..%d)\n", c.Template(), cfg.TotalFrames)

	write, finish, err := sweepSink(ctx, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	err = page.Sweep(ctx, c, cfg.Steps, func(st headless.Step) error {
		if st.Index%max(cfg.Steps/10, 1) == 0 {
			fmt.Printf("[*] Step %d/%d scroll=%.0f frame=%d listening=%v\n", st.Index, cfg.Steps, st.ScrollY, st.Frame, st.Listening)
		}
		return write(st)
	})
	if ferr := finish(); err == nil {
		err = ferr
	}
	if err != nil {
		return err
	}

	st := c.Stats()
	if st.Render.Failed > 0 {
		log.Printf("[!] %d frame loads failed", st.Render.Failed)
	}
	fmt.Printf("[+++] Sweep written to %s in %v (%d drawn, %d superseded)\n",
		cfg.Output, time.Since(start).Round(time.Millisecond), st.Render.Drawn, st.Render.Superseded)
	fmt.Printf("[*] %d paint ticks; gate attached %d times; cache %d hits, %d misses, %d evictions, %.1f/%.0f MiB\n",
		page.Loop().Ticks(), st.Attaches, st.Cache.Hits, st.Cache.Misses, st.Cache.Evictions,
		float64(st.Cache.Bytes)/(1<<20), float64(st.Cache.MaxBytes)/(1<<20))
	return nil
}

// sweepSink returns a per-step writer for cfg.Output and a function that finalizes it.
func sweepSink(ctx context.Context, cfg *config.Config) (func(headless.Step) error, func() error, error) {
	if !strings.EqualFold(filepath.Ext(cfg.Output), ".mp4") {
		if err := os.MkdirAll(cfg.Output, 0755); err != nil {
			return nil, nil, err
		}
		write := func(st headless.Step) error {
			return writePNG(filepath.Join(cfg.Output, fmt.Sprintf("step_%04d.png", st.Index)), st.Image)
		}
		return write, func() error { return nil }, nil
	}

	encoder := cfg.Encoder
	if encoder == "" {
		encoder = system.BestH264Encoder()
		if encoder != "libx264" {
			fmt.Printf("[*] Hardware encoder detected: %s\n", encoder)
		}
	}
	quality := cfg.Quality
	if quality == 0 {
		quality = system.DefaultQuality(encoder)
	}
	enc, err := video.Start(ctx, cfg.Output, video.Params{
		Width:   cfg.Surface.Width,
		Height:  cfg.Surface.Height,
		FPS:     cfg.FPS,
		Encoder: encoder,
		Quality: quality,
	})
	if err != nil {
		return nil, nil, err
	}
	write := func(st headless.Step) error {
		return enc.WriteFrame(st.Image)
	}
	return write, enc.Close, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := extract.Encode(f, path, img, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runExtract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	inputPtr := fs.String("input", "", "PDF file or image folder (default: newest PDF in input/pdf/)")
	templatePtr := fs.String("template", "output/frames/frame-#.jpg", "Output path template, # is the frame number")
	widthPtr := fs.Int("width", 0, "Frame width (0: keep aspect or source size)")
	heightPtr := fs.Int("height", 0, "Frame height (0: keep aspect or source size)")
	dpiPtr := fs.Int("dpi", 150, "PDF render DPI")
	qualityPtr := fs.Int("quality", 90, "JPEG quality")
	workersPtr := fs.Int("workers", 0, "Parallel writers (0: from available CPU and memory)")
	levelPtr := fs.String("log-level", "info", "Log level")
	fs.Parse(args)
	logger := newLogger(*levelPtr)

	input := *inputPtr
	if input == "" {
		latest, err := system.FindLatest("input/pdf", ".pdf")
		if err != nil {
			return fmt.Errorf("%w (put a PDF into input/pdf/)", err)
		}
		input = latest
		fmt.Printf("[*] Selected input: %s\n", input)
	}

	seq, err := sequence.Open(input)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer seq.Close()

	workers := *workersPtr
	if workers <= 0 {
		workers = system.PreloadWorkers()
	}
	fmt.Printf("[*] Extracting %d frames with %d workers\n", seq.Count(), workers)

	res, err := extract.Extract(ctx, seq, *templatePtr, extract.Options{
		Width:   *widthPtr,
		Height:  *heightPtr,
		DPI:     *dpiPtr,
		Quality: *qualityPtr,
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	fmt.Printf("[+++] %d frames written\n", res.Written)
	printValues(*templatePtr, res.TotalFrames)
	return nil
}

func runTestcard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("testcard", flag.ExitOnError)
	templatePtr := fs.String("template", "output/testcard/card-#.png", "Output path template, # is the frame number")
	totalPtr := fs.Int("total", 99, "Highest frame index")
	widthPtr := fs.Int("width", 960, "Frame width")
	heightPtr := fs.Int("height", 540, "Frame height")
	levelPtr := fs.String("log-level", "info", "Log level")
	fs.Parse(args)
	logger := newLogger(*levelPtr)

	paths, err := testcard.Generate(ctx, *templatePtr, *totalPtr, testcard.Options{
		Width:   *widthPtr,
		Height:  *heightPtr,
		Workers: system.PreloadWorkers(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	fmt.Printf("[+++] %d test cards written\n", len(paths))
	printValues(*templatePtr, *totalPtr)
	return nil
}

// printValues shows the config snippet for a freshly written sequence.
func printValues(template string, total int) {
	fmt.Printf("[*] srcs: %s\n[*] sizes: \"0\"\n[*] total_frames: %d\n", template, total)
}

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config with srcs, sizes and total_frames")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// stderr belongs to the screen while the preview runs
	logger := slog.New(slog.DiscardHandler)
	gg.SetLogger(logger)

	page := headless.New(cfg, nil)
	c, err := newController(page, cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	p, err := term.New(screen, page, c, term.WithTick(cfg.Tick), term.WithLogger(logger))
	if err != nil {
		return err
	}
	defer p.Close()

	page.ScrollTo(0)
	return p.Run(ctx)
}
