package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/capture"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/compose"
	"github.com/joseph-ayodele/photo-receipts/internal/export"
	"github.com/joseph-ayodele/photo-receipts/internal/ingest"
	"github.com/joseph-ayodele/photo-receipts/internal/pipeline"
	repo "github.com/joseph-ayodele/photo-receipts/internal/repository"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
	"github.com/joseph-ayodele/photo-receipts/internal/transport/cloudinary"
	"github.com/joseph-ayodele/photo-receipts/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		inmem      = flag.Bool("inmem", false, "use in-memory SQLite registry")
		offline    = flag.Bool("offline", false, "store photos under --out/media instead of uploading them")
		filterName = flag.String("filter", "none", "filter applied to every photo: "+strings.Join(constants.FiltersAsStringSlice(), ", "))
		out        = flag.String("out", ".", "directory receipts are written to")
		xlsxOut    = flag.String("export", "", "also write an XLSX of registered receipts to this path")
		fromStr    = flag.String("from", "", "export from date YYYY-MM-DD")
		toStr      = flag.String("to", "", "export to date YYYY-MM-DD")
		watchDir   = flag.String("watch", "", "hot folder: issue a single-photo receipt for every image dropped here")
	)
	flag.Usage = func() {
		printError("usage: receipt-batch [flags] photo1 [photo2 [photo3]]\n       receipt-batch [flags] --watch DIR\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	paths := flag.Args()
	if (*watchDir == "" && len(paths) == 0) || len(paths) > constants.MaxPhotosPerReceipt {
		printError("Error: between 1 and %d photo paths are required\n", constants.MaxPhotosPerReceipt)
		flag.Usage()
		os.Exit(1)
	}
	filter, err := constants.ParseFilter(*filterName)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	from, err := utils.ParseOptionalYMD(*fromStr)
	if err != nil {
		printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(1)
	}
	to, err := utils.ParseOptionalYMD(*toStr)
	if err != nil {
		printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	opts := batchOptions{
		inmem:    *inmem,
		offline:  *offline,
		filter:   filter,
		out:      *out,
		xlsxOut:  *xlsxOut,
		watchDir: *watchDir,
		from:     from,
		to:       to,
		paths:    paths,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, common.LoadConfig(), opts, logger)
	stop()
	if err != nil {
		logger.Error("receipt batch failed", "error", err)
		os.Exit(1)
	}
}

type batchOptions struct {
	inmem, offline bool
	filter         constants.Filter
	out            string
	xlsxOut        string
	watchDir       string
	from, to       *time.Time
	paths          []string
}

// run issues the receipt (or serves the hot folder) and writes the optional export.
// The registry is closed before it returns.
func run(ctx context.Context, cfg *common.Config, opts batchOptions, logger *slog.Logger) error {
	mediaDir := filepath.Join(opts.out, "media")
	if opts.watchDir != "" && opts.offline && within(mediaDir, opts.watchDir) {
		return errors.New("--out must not be inside --watch when --offline is set")
	}
	if !opts.offline && (cfg.Upload.CloudName == "" || cfg.Upload.UploadPreset == "") {
		return errors.New("CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET are required unless --offline is set")
	}

	dbCfg := repo.ConfigFrom(cfg.Registry)
	if opts.inmem {
		dbCfg.URL = "sqlite::memory:"
	}
	db, err := repo.Open(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer repo.Close(db, logger)

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var uploader transport.Uploader
	if opts.offline {
		uploader = &dirUploader{dir: mediaDir}
	} else {
		uploader = cloudinary.NewClient(cloudinary.Config{
			CloudName:    cfg.Upload.CloudName,
			UploadPreset: cfg.Upload.UploadPreset,
			BaseURL:      cfg.Upload.BaseURL,
			Timeout:      cfg.Upload.Timeout,
			MediaHosts:   cfg.Upload.MediaHosts,
		}, logger)
	}

	loc := cfg.Receipt.Location()
	processor := pipeline.NewProcessor(pipeline.Deps{
		Uploader: uploader,
		Photos:   db.Photos,
		Composer: compose.New(compose.Config{Title: cfg.Receipt.Title, Footer: cfg.Receipt.Footer, Location: loc}, logger),
		Origin:   cfg.Server.PublicOrigin,
	}, logger)

	if opts.watchDir != "" {
		if err := watch(ctx, processor, opts.watchDir, opts.filter, opts.out, logger); err != nil {
			return fmt.Errorf("hot folder %s: %w", opts.watchDir, err)
		}
	} else if err := issue(ctx, processor, opts.paths, opts.filter, opts.out, logger); err != nil {
		return fmt.Errorf("issue receipt: %w", err)
	}

	if opts.xlsxOut == "" {
		return nil
	}
	svc := export.NewService(db.Photos, cfg.Server.PublicOrigin, loc, logger)
	data, err := svc.ExportGroupsXLSX(ctx, opts.from, opts.to)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(opts.xlsxOut, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	logger.Info("export written", "path", opts.xlsxOut, "bytes", len(data))
	return nil
}

// issue captures paths in order and writes one receipt PDF into out.
func issue(ctx context.Context, processor *pipeline.Processor, paths []string, filter constants.Filter, out string, logger *slog.Logger) error {
	session := capture.NewSession(capture.FileDevice{Paths: paths}, logger)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", capture.Message(err), err)
	}
	defer func() { _ = session.Close() }()

	captures := make([]pipeline.Capture, 0, len(paths))
	for range paths {
		frame, err := session.Capture(ctx)
		if err != nil {
			return err
		}
		captures = append(captures, pipeline.Capture{Image: frame, Filter: filter})
	}

	start := time.Now()
	res, err := processor.Process(ctx, captures)
	if err != nil {
		return err
	}
	pdfPath := filepath.Join(out, res.Document.Name)
	if err := os.WriteFile(pdfPath, res.Document.Bytes, 0o644); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	logger.Info("receipt written",
		"path", pdfPath,
		"group_id", res.Group.ID,
		"view_url", res.ViewURL,
		"photos", len(res.Group.Photos),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// watch issues a receipt per image appearing under dir until ctx is cancelled.
func watch(ctx context.Context, processor *pipeline.Processor, dir string, filter constants.Filter, out string, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{Roots: []string{dir}, Debounce: 500 * time.Millisecond}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching hot folder", "dir", dir)
	drainHotFolder(events, errs, func(path string) {
		if err := issue(ctx, processor, []string{path}, filter, out, logger); err != nil {
			logger.Error("failed to issue receipt", "path", path, "error", err)
		}
	}, logger)
	return nil
}

// drainHotFolder hands every path to handle until events closes. A closed error channel is
// dropped from the select.
func drainHotFolder(events <-chan string, errs <-chan error, handle func(string), logger *slog.Logger) {
	for events != nil {
		select {
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			handle(path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("hot folder watcher error", "error", err)
		}
	}
}

func within(path, dir string) bool {
	p, err1 := filepath.Abs(path)
	d, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(d, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
