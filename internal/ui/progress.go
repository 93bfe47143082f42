package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type MPBProgressManager struct {
	p *mpb.Progress
}

func NewProgressManager(out io.Writer) *MPBProgressManager {
	p := mpb.New(
		mpb.WithWidth(40),
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &MPBProgressManager{p: p}
}

func (pm *MPBProgressManager) Close() {
	pm.p.Wait()
}

// Register adds a bar for one loader. The bar counts loaded pages; when the
// total is unknown it grows with every page.
func (pm *MPBProgressManager) Register(prefix string) *ProgressHandle {
	h := &ProgressHandle{
		pm:     pm,
		prefix: prefix,
		start:  time.Now(),
	}
	h.initBar()
	return h
}

type ProgressHandle struct {
	pm     *MPBProgressManager
	prefix string
	bar    *mpb.Bar

	known atomic.Bool
	pages atomic.Int64
	items atomic.Int64
	bytes atomic.Int64

	start   time.Time
	elapsed atomic.Int64
	final   atomic.Bool
}

func (h *ProgressHandle) initBar() {
	h.bar = h.pm.p.New(
		0,
		mpb.BarStyle().Rbound("]"),

		mpb.PrependDecorators(
			decor.Name(h.prefix+"  "),
		),

		mpb.AppendDecorators(
			decor.CountersNoUnit(" %d/%d pages", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return fmt.Sprintf(" | %d items", h.items.Load())
			}),
			decor.Any(func(_ decor.Statistics) string {
				return " | " + humanize.Bytes(uint64(h.bytes.Load()))
			}),
			decor.Any(func(_ decor.Statistics) string {
				if h.final.Load() {
					return fmt.Sprintf(" | %ds", h.elapsed.Load())
				}
				return fmt.Sprintf(" | %ds", int(time.Since(h.start).Seconds()))
			}),
		),
	)
}

// SetTotal fixes the expected page count. Zero keeps the bar open-ended.
func (h *ProgressHandle) SetTotal(total int) {
	if h.final.Load() || total <= 0 {
		return
	}

	h.known.Store(true)
	h.bar.SetTotal(int64(total), false)
}

// AddBytes is fed from the transport while a body is being read.
func (h *ProgressHandle) AddBytes(n int64) {
	h.bytes.Add(n)
}

// PageLoaded records one more page and the items it brought in.
func (h *ProgressHandle) PageLoaded(items int) {
	if h.final.Load() {
		return
	}

	pages := h.pages.Add(1)
	h.items.Add(int64(items))
	if !h.known.Load() {
		h.bar.SetTotal(pages+1, false)
	}
	h.bar.SetCurrent(pages)
}

func (h *ProgressHandle) MarkDone() {
	if h.final.Swap(true) {
		return
	}

	h.elapsed.Store(int64(time.Since(h.start).Seconds()))
	pages := h.pages.Load()
	h.bar.SetCurrent(pages)
	h.bar.SetTotal(pages, true)
}
