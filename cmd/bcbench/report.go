package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/device"
)

func ibytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func printResult(w io.Writer, res *result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	o := res.Options

	fmt.Fprintf(tw, "device\t%s (%s blocks, codec %s)\n", o.device, ibytes(int64(o.blockSize)), o.codec)
	fmt.Fprintf(tw, "workload\t%d workers x %s ops, %d files x %s blocks\n",
		o.workers, humanize.Comma(int64(o.ops)), o.files, humanize.Comma(int64(o.blocks)))
	fmt.Fprintf(tw, "elapsed\t%s (%s ops/s)\n",
		res.Elapsed.Round(time.Millisecond), humanize.Comma(int64(float64(res.Ops)/max(res.Elapsed.Seconds(), 1e-9))))
	fmt.Fprintln(tw)

	s := res.Cache
	fmt.Fprintf(tw, "hit rate\t%.2f%% (%s hits, %s misses)\n",
		100*s.HitRate(), humanize.Comma(s.Hits), humanize.Comma(s.Misses))
	fmt.Fprintf(tw, "resident\t%s entries, %s (peak %s entries, %s)\n",
		humanize.Comma(int64(s.Entries)), ibytes(s.Bytes), humanize.Comma(int64(s.PeakEntries)), ibytes(s.PeakBytes))
	fmt.Fprintf(tw, "evicted\t%s entries, %s\n", humanize.Comma(s.Evictions), ibytes(s.EvictedBytes))
	fmt.Fprintf(tw, "ownership waits\t%s (%d timeouts)\n", humanize.Comma(s.OwnershipWaits), s.OwnershipTimeouts)
	fmt.Fprintf(tw, "modified\t%s ops, %s in %d ranges synced\n",
		humanize.Comma(res.Writes), ibytes(res.Synced), res.Ranges)

	m := res.Metrics
	fmt.Fprintf(tw, "device reads\t%s (%s, avg %s)\n",
		humanize.Comma(m.ReadCount), ibytes(m.ReadBytes), time.Duration(m.ReadAvgNanos))
	fmt.Fprintf(tw, "device writes\t%s (%s, avg %s)\n",
		humanize.Comma(m.WriteCount), ibytes(m.WriteBytes), time.Duration(m.WriteAvgNanos))
	if res.CloseErr != nil {
		fmt.Fprintf(tw, "close\t%v\n", res.CloseErr)
	}
	_ = tw.Flush()
}

type report struct {
	RunID     string                       `json:"run_id"`
	StartedAt time.Time                    `json:"started_at"`
	ElapsedNS int64                        `json:"elapsed_ns"`
	Device    string                       `json:"device"`
	Codec     string                       `json:"codec"`
	Files     int                          `json:"files"`
	Blocks    int                          `json:"blocks"`
	BlockSize int                          `json:"block_size"`
	Workers   int                          `json:"workers"`
	Ops       int64                        `json:"ops"`
	Writes    int64                        `json:"writes"`
	Synced    int64                        `json:"synced_bytes"`
	Seed      int64                        `json:"seed"`
	Cache     blockcache.Stats             `json:"cache"`
	Metrics   blockcache.BasicMetricsStats `json:"metrics"`
	IO        *device.Counters             `json:"io,omitempty"`
	CloseErr  string                       `json:"close_error,omitempty"`
}

func writeReport(path string, res *result) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	o := res.Options
	r := report{
		RunID:     id.String(),
		StartedAt: res.Started,
		ElapsedNS: res.Elapsed.Nanoseconds(),
		Device:    o.device,
		Codec:     o.codec.String(),
		Files:     o.files,
		Blocks:    o.blocks,
		BlockSize: o.blockSize,
		Workers:   o.workers,
		Ops:       res.Ops,
		Writes:    res.Writes,
		Synced:    res.Synced,
		Seed:      o.seed,
		Cache:     res.Cache,
		Metrics:   res.Metrics,
		IO:        res.Device,
	}
	if res.CloseErr != nil {
		r.CloseErr = res.CloseErr.Error()
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
