package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/glorpus-work/preload/pkg/asset"
	"github.com/glorpus-work/preload/pkg/preloader"
	"github.com/glorpus-work/preload/pkg/progress"
)

// reporter prints controller events as they happen and a summary at the end.
// In json mode only the summary is printed.
type reporter struct {
	out      io.Writer
	json     bool
	quiet    bool
	interval time.Duration

	mu      sync.Mutex
	last    time.Time
	lastPct string
	start   time.Time
}

func newReporter(out io.Writer, outputFormat string, quiet bool) *reporter {
	return &reporter{
		out:      out,
		json:     outputFormat == "json",
		quiet:    quiet,
		interval: ProgressInterval,
		start:    time.Now(),
	}
}

// attach subscribes to c and returns a func that detaches again.
func (r *reporter) attach(c *preloader.Controller) func() {
	if r.json || r.quiet {
		return func() {}
	}
	unsubs := []func(){
		c.OnProgress(func(e preloader.ProgressEvent) { r.progress(e, c.Assets()) }),
		c.OnFetched(r.fetched),
		c.OnCancel(r.cancelled),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *reporter) progress(e preloader.ProgressEvent, assets []asset.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pct := progress.Percent(e.Progress)
	now := time.Now()
	if pct == r.lastPct || (now.Sub(r.last) < r.interval && pct != "100%") {
		return
	}
	r.last = now
	r.lastPct = pct

	downloaded, total := progress.Bytes(assets)
	_, _ = fmt.Fprintf(r.out, "[preload] %4s | %s / %s | %s\n",
		pct,
		progress.FormatBytes(downloaded),
		progress.FormatBytes(total),
		displayName(e.Asset),
	)
}

func (r *reporter) fetched(a asset.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := a.Result(); ok {
		_, _ = fmt.Fprintf(r.out, "[preload] fetched %s (%s, %s)\n", displayName(a), orDash(res.ContentType), progress.FormatBytes(res.Size))
		return
	}
	_, _ = fmt.Fprintf(r.out, "[preload] failed %s: %s\n", a.URL, failureText(a))
}

func (r *reporter) cancelled(assets []asset.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range assets {
		if a.Status() == asset.StatusAborted {
			n++
		}
	}
	_, _ = fmt.Fprintf(r.out, "[preload] cancelled %d transfer(s)\n", n)
}

type assetReport struct {
	URL         string  `json:"url"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Downloaded  int64   `json:"downloaded_bytes"`
	Total       int64   `json:"total_bytes"`
	ContentType string  `json:"content_type,omitempty"`
	FileName    string  `json:"file_name,omitempty"`
	Format      string  `json:"format,omitempty"`
	StatusCode  int     `json:"status_code,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func newAssetReport(a asset.Asset) assetReport {
	rep := assetReport{
		URL:        a.URL,
		Status:     a.Status().String(),
		Progress:   a.Progress,
		Downloaded: a.DownloadedBytes,
		Total:      a.TotalBytes,
	}
	if res, ok := a.Result(); ok {
		rep.ContentType = res.ContentType
		rep.FileName = res.FileName
		rep.Format = res.Format
		rep.StatusCode = res.StatusCode
	}
	if f, ok := a.Failure(); ok {
		rep.StatusCode = f.StatusCode
		rep.Error = failureText(a)
	}
	return rep
}

// summary prints the final state of every asset.
func (r *reporter) summary(assets []asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.json {
		reports := make([]assetReport, len(assets))
		for i, a := range assets {
			reports[i] = newAssetReport(a)
		}
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	tw := tabwriter.NewWriter(r.out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "URL\tSTATUS\tSIZE\tTYPE")
	_, _ = fmt.Fprintln(tw, "---\t------\t----\t----")
	for _, a := range assets {
		size, typ := "-", "-"
		if res, ok := a.Result(); ok {
			size = progress.FormatBytes(res.Size)
			typ = orDash(res.ContentType)
			if res.Format != "" {
				typ += " (" + res.Format + ")"
			}
		} else if a.Error() {
			typ = failureText(a)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", truncate(a.URL, MaxURLLength), a.Status(), size, typ)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	downloaded, _ := progress.Bytes(assets)
	_, _ = fmt.Fprintf(r.out, "\n%d asset(s), %s in %s\n", len(assets), progress.FormatBytes(downloaded), time.Since(r.start).Round(time.Millisecond))
	return nil
}

func displayName(a asset.Asset) string {
	if res, ok := a.Result(); ok && res.FileName != "" {
		return res.FileName
	}
	return truncate(a.URL, MaxURLLength)
}

func failureText(a asset.Asset) string {
	f, ok := a.Failure()
	switch {
	case !ok:
		return ""
	case f.Err != nil:
		return f.Err.Error()
	default:
		return fmt.Sprintf("HTTP %d", f.StatusCode)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
