package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/hupe1980/blockcache/codec"
)

type options struct {
	config   string
	device   string
	path     string
	bucket   string
	prefix   string
	endpoint string
	secure   bool
	codec    codec.Kind

	files     int
	blocks    int
	blockSize int
	workers   int
	ops       int
	writePct  int
	skew      float64
	seed      int64
	report    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		o         options
		codecName string
	)

	fs := flag.NewFlagSet("bcbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "", "cache config file (JSON with comments)")
	fs.StringVar(&o.device, "device", "memory", "device backend: memory, file, local, s3 or minio")
	fs.StringVar(&o.path, "path", "", "image file (file) or blob directory (local)")
	fs.StringVar(&o.bucket, "bucket", "", "bucket name (s3, minio)")
	fs.StringVar(&o.prefix, "prefix", "bcbench/", "object key prefix (local, s3, minio)")
	fs.StringVar(&o.endpoint, "endpoint", "", "object store endpoint (minio; optional for s3)")
	fs.BoolVar(&o.secure, "secure", false, "use TLS for the minio endpoint")
	fs.StringVar(&codecName, "codec", "lz4", "blob compression: none, lz4 or zstd")
	fs.IntVar(&o.files, "files", 4, "number of files sharing the device")
	fs.IntVar(&o.blocks, "blocks", 1024, "blocks per file")
	fs.IntVar(&o.blockSize, "block-size", 4096, "block size in bytes, also the device sector size")
	fs.IntVarP(&o.workers, "workers", "w", 8, "concurrent workers")
	fs.IntVarP(&o.ops, "ops", "n", 10000, "operations per worker")
	fs.IntVar(&o.writePct, "write-pct", 30, "percentage of operations that modify the block")
	fs.Float64Var(&o.skew, "skew", 1.1, "zipf skew of block popularity")
	fs.Int64Var(&o.seed, "seed", 4711, "random seed")
	fs.StringVar(&o.report, "report", "", "write a JSON report to this path")

	fs.Usage = func() {
		fmt.Fprint(stderr, "Usage: bcbench [flags]\n\n")
		fmt.Fprint(stderr, "Runs allocate/read/modify/release cycles against a block cache.\n\n")
		fmt.Fprint(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	kind, err := codec.ParseKind(codecName)
	if err != nil {
		return o, err
	}
	o.codec = kind

	switch {
	case o.files <= 0:
		return o, fmt.Errorf("--files must be positive, got %d", o.files)
	case o.blocks <= 0:
		return o, fmt.Errorf("--blocks must be positive, got %d", o.blocks)
	case o.blockSize <= 0:
		return o, fmt.Errorf("--block-size must be positive, got %d", o.blockSize)
	case o.workers <= 0:
		return o, fmt.Errorf("--workers must be positive, got %d", o.workers)
	case o.ops < 0:
		return o, fmt.Errorf("--ops must not be negative, got %d", o.ops)
	case o.writePct < 0 || o.writePct > 100:
		return o, fmt.Errorf("--write-pct must be in [0, 100], got %d", o.writePct)
	}
	return o, nil
}
