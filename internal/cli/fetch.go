package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/preload/internal/logger"
	"github.com/glorpus-work/preload/pkg/asset"
	"github.com/glorpus-work/preload/pkg/config"
	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/fsutil"
	"github.com/glorpus-work/preload/pkg/hooks"
	"github.com/glorpus-work/preload/pkg/manifest"
	"github.com/glorpus-work/preload/pkg/preloader"
)

type fetchOptions struct {
	manifest               string
	deferred               bool
	responseType           string
	headers                []string
	cancelAfter            time.Duration
	cancelOnTransportError bool
	quiet                  bool
}

// fetchItem is one asset to load together with its per-load options.
type fetchItem struct {
	url  string
	opts []preloader.LoadOption
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch [URL...]",
		Short: "Preload assets",
		Long: `Fetch assets concurrently and report aggregate progress.

Assets are taken from the arguments and from an optional manifest file.
With --deferred every asset is registered first and all transfers are
started together.`,
		Example: `  preload fetch https://example.com/a.png https://example.com/b.mp4
  preload fetch --manifest assets.yaml --cancel-after 30s
  preload fetch -o json --response-type discard https://example.com/big.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "YAML manifest listing assets to fetch")
	cmd.Flags().BoolVar(&opts.deferred, "deferred", false, "Register every asset before starting any transfer")
	cmd.Flags().StringVar(&opts.responseType, "response-type", "", "Response type: blob or discard (overrides config)")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, "Request header as NAME=VALUE (repeatable)")
	cmd.Flags().DurationVar(&opts.cancelAfter, "cancel-after", 0, "Cancel in-flight transfers after this duration")
	cmd.Flags().BoolVar(&opts.cancelOnTransportError, "cancel-on-transport-error", false,
		"Cancel sibling transfers when a transfer fails at the network level")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string, opts *fetchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFetchFlags(cfg, opts); err != nil {
		return err
	}

	m, items, err := collectItems(args, opts.manifest)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	popts := cfg.PreloaderOptions()
	c := preloader.New(popts)
	defer c.Dispose()

	hm := hooks.NewManager(map[string]interface{}{"preloader": c.ID()})
	if err := loadHooks(hm, cfg); err != nil {
		return err
	}
	defer hm.Attach(c)()

	rep := newReporter(cmd.OutOrStdout(), cfg.Settings.OutputFormat, opts.quiet)
	defer rep.attach(c)()

	if opts.cancelAfter > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.cancelAfter)
		defer cancel()
	}

	logger.Debug("Starting fetch", logger.Fields{
		"preloader": c.ID(),
		"assets":    len(items),
		"deferred":  opts.deferred,
		"policy":    popts.TransportErrorPolicy.String(),
	})

	waitAll := startFetch(c, m, items, opts.deferred)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			if aborted := c.Cancel(); len(aborted) > 0 {
				logger.Warn("Fetch cancelled", logger.Fields{"aborted": len(aborted), "reason": ctx.Err()})
			}
		case <-stopWatch:
		}
	}()

	if err := waitAll(); err != nil {
		logger.Debug("Fetch finished with transport errors", logger.Fields{"error": err})
	}

	assets := c.Assets()
	if err := rep.summary(assets); err != nil {
		return err
	}
	return checkAssets(assets)
}

func applyFetchFlags(cfg *config.Config, opts *fetchOptions) error {
	if opts.responseType != "" {
		cfg.Settings.ResponseType = opts.responseType
	}
	if opts.cancelOnTransportError {
		cfg.Settings.CancelOnTransportError = true
	}
	if len(opts.headers) > 0 {
		headers, err := parseHeaders(opts.headers)
		if err != nil {
			return err
		}
		if cfg.Settings.Headers == nil {
			cfg.Settings.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Settings.Headers[k] = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.Settings.Auth.Validate()
}

// collectItems merges the URL arguments with the manifest entries. The
// manifest is returned only when it is the sole source of assets.
func collectItems(args []string, manifestPath string) (*manifest.Manifest, []fetchItem, error) {
	items := make([]fetchItem, 0, len(args))
	for _, u := range args {
		items = append(items, fetchItem{url: u})
	}

	var m *manifest.Manifest
	if manifestPath != "" {
		var err error
		m, err = manifest.Load(manifestPath)
		if err != nil {
			return nil, nil, err
		}
		if err := m.CheckVersion(Version); err != nil {
			return nil, nil, err
		}
		for i, e := range m.Assets {
			items = append(items, fetchItem{url: e.URL, opts: m.EntryOptions(i)})
		}
	}

	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: pass URLs or --manifest", errors.ErrNoAssets)
	}
	if len(args) > 0 {
		m = nil
	}
	return m, items, nil
}

func loadHooks(hm *hooks.Manager, cfg *config.Config) error {
	dir, err := fsutil.GetHooksDir()
	if err != nil {
		logger.Warn("Failed to get hooks directory", logger.Fields{"error": err})
	} else if err := hm.LoadDir(dir); err != nil {
		return err
	}
	return hm.LoadHooks(cfg.Hooks)
}

// startFetch starts every transfer and returns a func that blocks until all
// of them are terminal.
func startFetch(c *preloader.Controller, m *manifest.Manifest, items []fetchItem, deferred bool) func() error {
	if !deferred && m != nil && m.Uniform() {
		batch := c.Fetch(m.URLs(), m.Options()...)
		return func() error {
			_, err := batch.Wait(context.Background())
			return err
		}
	}

	if !deferred {
		c.Start()
	}
	futures := make([]*preloader.Future[asset.Asset], len(items))
	for i, it := range items {
		futures[i] = c.Load(it.url, it.opts...)
	}
	if deferred {
		c.Start()
	}

	return func() error {
		var firstErr error
		for _, f := range futures {
			if _, err := f.Wait(context.Background()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

func checkAssets(assets []asset.Asset) error {
	failed, aborted := 0, 0
	for _, a := range assets {
		switch a.Status() {
		case asset.StatusFailed:
			failed++
		case asset.StatusAborted:
			aborted++
		}
	}
	if failed+aborted == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d failed, %d aborted", errors.ErrAssetsFailed, failed, aborted)
}
