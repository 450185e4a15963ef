package bridge

import (
	"context"
	"time"

	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/marmos91/fsbridge/pkg/metrics"
)

// instrumentedDriver times every driver call and records the outcome as a
// driver operation labelled with the snake_case method name.
type instrumentedDriver struct {
	next    driver.Driver
	metrics metrics.BridgeMetrics
}

func instrument(d driver.Driver, m metrics.BridgeMetrics) driver.Driver {
	return &instrumentedDriver{next: d, metrics: m}
}

func (d *instrumentedDriver) observe(op string, start time.Time, err error) {
	d.metrics.RecordDriverOperation(op, time.Since(start), err)
}

func (d *instrumentedDriver) Read(ctx context.Context, p string) (data []byte, err error) {
	defer func(start time.Time) { d.observe("read", start, err) }(time.Now())
	return d.next.Read(ctx, p)
}

func (d *instrumentedDriver) Write(ctx context.Context, p string, data []byte) (err error) {
	defer func(start time.Time) { d.observe("write", start, err) }(time.Now())
	return d.next.Write(ctx, p, data)
}

func (d *instrumentedDriver) CreateEmpty(ctx context.Context, p string) (err error) {
	defer func(start time.Time) { d.observe("create_empty", start, err) }(time.Now())
	return d.next.CreateEmpty(ctx, p)
}

func (d *instrumentedDriver) CreateDirectory(ctx context.Context, p string, withIntermediates bool) (err error) {
	defer func(start time.Time) { d.observe("create_directory", start, err) }(time.Now())
	return d.next.CreateDirectory(ctx, p, withIntermediates)
}

func (d *instrumentedDriver) List(ctx context.Context, p string) (entries []driver.Entry, err error) {
	defer func(start time.Time) { d.observe("list", start, err) }(time.Now())
	return d.next.List(ctx, p)
}

func (d *instrumentedDriver) Remove(ctx context.Context, p string) (err error) {
	defer func(start time.Time) { d.observe("remove", start, err) }(time.Now())
	return d.next.Remove(ctx, p)
}

func (d *instrumentedDriver) Exists(ctx context.Context, p string) (ok bool, err error) {
	defer func(start time.Time) { d.observe("exists", start, err) }(time.Now())
	return d.next.Exists(ctx, p)
}

func (d *instrumentedDriver) IsDirectory(ctx context.Context, p string) (ok bool, err error) {
	defer func(start time.Time) { d.observe("is_directory", start, err) }(time.Now())
	return d.next.IsDirectory(ctx, p)
}

func (d *instrumentedDriver) ModificationTime(ctx context.Context, p string) (t time.Time, err error) {
	defer func(start time.Time) { d.observe("modification_time", start, err) }(time.Now())
	return d.next.ModificationTime(ctx, p)
}

// URL does no I/O and is not timed.
func (d *instrumentedDriver) URL(p string) string {
	return d.next.URL(p)
}
