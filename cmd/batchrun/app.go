package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JakeFAU/batchlog/internal/api"
	"github.com/JakeFAU/batchlog/internal/clock"
	"github.com/JakeFAU/batchlog/internal/config"
	"github.com/JakeFAU/batchlog/internal/hash/sha256"
	uuidgen "github.com/JakeFAU/batchlog/internal/id/uuid"
	"github.com/JakeFAU/batchlog/internal/logging"
	"github.com/JakeFAU/batchlog/internal/parallel"
	"github.com/JakeFAU/batchlog/internal/progress"
	"github.com/JakeFAU/batchlog/internal/progress/sinks"
	"github.com/JakeFAU/batchlog/internal/storage"
	"github.com/JakeFAU/batchlog/internal/storage/gcs"
	"github.com/JakeFAU/batchlog/internal/storage/local"
	"github.com/JakeFAU/batchlog/internal/storage/memory"
	"github.com/JakeFAU/batchlog/internal/storage/postgres"
	"github.com/JakeFAU/batchlog/internal/store"
)

// loggerFunc looks up a named logger; logging.GetLogger and
// (*logging.Registry).GetLogger both satisfy it.
type loggerFunc func(name string, opts ...logging.Option) (*logging.Logger, error)

type deps struct {
	cfg      config.Config
	logger   *logging.Logger
	loggers  loggerFunc
	registry *prometheus.Registry
	clock    clock.Clock
	ids      parallel.IDGenerator
	barOut   io.Writer
	// blobs overrides the store selected by output.uri.
	blobs storage.BlobStore
}

type app struct {
	cfg      config.Config
	logger   *logging.Logger
	loggers  loggerFunc
	clock    clock.Clock
	ids      parallel.IDGenerator
	barOut   io.Writer
	registry *prometheus.Registry

	hub     *progress.Hub
	repo    store.RunRepository
	blobs   storage.BlobStore
	server  *http.Server
	addr    string
	closers []func() error
}

type manifestEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type manifest struct {
	RunID      string          `json:"run_id"`
	Root       string          `json:"root"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Files      []manifestEntry `json:"files"`
}

func newApp(ctx context.Context, d deps) (a *app, err error) {
	a = &app{
		cfg:      d.cfg,
		logger:   d.logger,
		loggers:  d.loggers,
		clock:    d.clock,
		ids:      d.ids,
		barOut:   d.barOut,
		registry: d.registry,
		blobs:    d.blobs,
	}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	if err := a.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	if a.repo, err = a.openRepository(ctx); err != nil {
		return nil, err
	}
	if a.blobs == nil {
		if a.blobs, err = a.openBlobStore(ctx); err != nil {
			return nil, err
		}
	}

	hubLogger, err := a.component("progress")
	if err != nil {
		return nil, err
	}
	storeLogger, err := a.component("store")
	if err != nil {
		return nil, err
	}
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, err
	}
	hubCfg := a.cfg.Progress.Config
	hubCfg.BaseContext = context.WithoutCancel(ctx)
	hubCfg.Logger = hubLogger.Zap()
	a.hub = progress.NewHub(hubCfg,
		sinks.NewLogSink(hubLogger.Zap()),
		promSink,
		sinks.NewStoreSink(a.repo, storeLogger.Zap()),
	)

	if a.cfg.Metrics.Addr != "" {
		if err := a.serve(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// component returns a child of the root logger that propagates to its sinks.
func (a *app) component(name string) (*logging.Logger, error) {
	l, err := a.loggers(a.cfg.Logging.Name+"."+name, logging.WithLevel(a.cfg.LogLevel()))
	if err != nil {
		return nil, fmt.Errorf("%s logger: %w", name, err)
	}
	return l, nil
}

func (a *app) openRepository(ctx context.Context) (store.RunRepository, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("db.dsn not set, keeping run progress in memory")
		return memory.NewRunStore(), nil
	}
	pg, err := postgres.NewProgressStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func (a *app) openBlobStore(ctx context.Context) (storage.BlobStore, error) {
	uri := a.cfg.Output.URI
	switch {
	case uri == "":
		return nil, nil
	case strings.HasPrefix(uri, "gs://"):
		gcsCfg, err := gcs.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcs.New(client, gcsCfg)
	default:
		return local.New(local.Config{BaseDir: strings.TrimPrefix(uri, "file://")})
	}
}

func (a *app) serve(ctx context.Context) error {
	apiLogger, err := a.component("api")
	if err != nil {
		return err
	}
	srv, err := api.NewServer(api.Options{
		Repo:       a.repo,
		Registerer: a.registry,
		Gatherer:   a.registry,
		Logger:     apiLogger.Zap(),
	})
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Metrics.Addr, err)
	}
	a.server = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	a.addr = ln.Addr().String()
	a.logger.Infof("serving metrics and run status on %s", a.addr)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiLogger.Errorf("server stopped: %v", err)
		}
	}()
	return nil
}

// hashTree digests every regular file under root, reporting progress for the
// run, and writes the manifest when an output store is configured.
func (a *app) hashTree(ctx context.Context, root string) (manifest, error) {
	files, err := listFiles(root)
	if err != nil {
		return manifest{}, err
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return manifest{}, fmt.Errorf("generate run id: %w", err)
	}
	workerLogger, err := a.component("parallel")
	if err != nil {
		return manifest{}, err
	}
	runner, err := parallel.New(a.cfg.Parallel,
		parallel.WithLogger(workerLogger.Zap()),
		parallel.WithClock(a.clock),
		parallel.WithIDGenerator(uuidgen.Fixed(runID)),
	)
	if err != nil {
		return manifest{}, err
	}

	name := "hash " + root
	var bar progress.Indicator
	if a.cfg.Progress.Bar {
		bar = progress.NewBar(len(files), name, progress.WithBarWriter(a.barOut))
	}
	ind := progress.Tee(bar, progress.NewHubIndicator(a.hub, runID, name,
		progress.WithTotal(len(files)),
		progress.WithHubClock(a.clock),
	))

	out := manifest{RunID: runID.String(), Root: root, StartedAt: a.clock.Now()}
	hasher := sha256.New()
	a.logger.Infof("hashing %d files under %s (run %s)", len(files), root, runID)
	err = progress.Report(ind, func(progress.Indicator) error {
		entries, err := parallel.Map(ctx, runner, files, func(_ context.Context, path string) (manifestEntry, error) {
			digest, size, err := hasher.HashFile(path)
			if err != nil {
				return manifestEntry{}, err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			a.logger.Debugf("%s  %s", digest, rel)
			return manifestEntry{Path: rel, Size: size, SHA256: digest}, nil
		})
		out.Files = entries
		return err
	})
	out.FinishedAt = a.clock.Now()
	if err != nil {
		return out, err
	}
	a.logger.Infof("hashed %d files in %s", len(out.Files), out.FinishedAt.Sub(out.StartedAt))

	if a.blobs != nil {
		if err := a.writeManifest(ctx, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (a *app) writeManifest(ctx context.Context, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	uri, err := a.blobs.PutObject(ctx, m.RunID+".json", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	a.logger.Infof("manifest written to %s", uri)
	return nil
}

// close stops the server, drains the hub into its sinks and releases
// connections. It is safe on a partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// listFiles returns the regular files under root in lexical order.
func listFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
