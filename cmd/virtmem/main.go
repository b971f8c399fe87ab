// Command virtmem runs a workload against a simulated virtual memory with a
// chosen page replacement policy and reports fault, read and write counts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sibexico/virtmem/storage"
	"github.com/sibexico/virtmem/vm"
	"github.com/sibexico/virtmem/workload"
)

const usage = "use: virtmem [flags] <npages> <nframes> <rand|fifo|lru> <sort|scan|focus>"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("virtmem", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "JSON configuration file")
	seed := fs.Uint64("seed", 0, "PRNG seed for eviction and workload (0 picks one from the clock)")
	diskPath := fs.String("disk", "", "backing store file")
	backend := fs.String("backend", "", "backing store backend (file, mmap, memory)")
	compression := fs.String("compress", "", "backing store compression (none, lz4, snappy)")
	syncWrites := fs.Bool("sync", false, "fsync every page write")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	quiet := fs.Bool("quiet", false, "do not print fault/read/write totals")
	check := fs.Bool("check", false, "verify frame and page table consistency after the run")
	saveConfig := fs.String("save-config", "", "write the effective configuration to this JSON file")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 4 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "virtmem: %v\n", err)
		return 1
	}

	npages, err := strconv.ParseUint(fs.Arg(0), 10, 32)
	if err != nil {
		fmt.Fprintf(stderr, "virtmem: bad page count %q\n", fs.Arg(0))
		return 1
	}
	nframes, err := strconv.ParseUint(fs.Arg(1), 10, 32)
	if err != nil {
		fmt.Fprintf(stderr, "virtmem: bad frame count %q\n", fs.Arg(1))
		return 1
	}
	cfg.NumPages = uint32(npages)
	cfg.NumFrames = uint32(nframes)
	cfg.Policy = fs.Arg(2)
	cfg.Program = fs.Arg(3)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed = *seed
		case "disk":
			cfg.DiskPath = *diskPath
		case "backend":
			cfg.DiskBackend = *backend
		case "compress":
			cfg.Compression = *compression
		case "sync":
			cfg.SyncWrites = *syncWrites
		case "log-level":
			cfg.LogLevel = *logLevel
		case "check":
			cfg.CheckConsistency = *check
		}
	})
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	logger := newLogger(stderr, cfg.LogLevel)

	program, err := workload.Lookup(cfg.Program)
	if err != nil {
		fmt.Fprintf(stderr, "virtmem: %v\n", err)
		return 1
	}

	sim, err := vm.Open(cfg, logger)
	if err != nil {
		if storage.IsErrorCode(err, storage.ErrCodeUnknownPolicy) || storage.IsErrorCode(err, storage.ErrCodeInvalidConfig) {
			fmt.Fprintf(stderr, "virtmem: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "virtmem: couldn't create virtual memory: %v\n", err)
		}
		return 1
	}

	if *saveConfig != "" {
		if err := cfg.SaveToFile(*saveConfig); err != nil {
			sim.Close()
			fmt.Fprintf(stderr, "virtmem: %v\n", err)
			return 1
		}
	}

	result, runErr := program(sim.PageTable(), workload.NewRand(cfg.Seed))
	if runErr == nil && cfg.CheckConsistency {
		runErr = sim.Check()
	}
	closeErr := sim.Close()
	stats := sim.Stats()
	compStats, compressed := sim.CompressionStats()

	if err := errors.Join(runErr, closeErr); err != nil {
		fmt.Fprintf(stderr, "virtmem: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, result)
	if !*quiet {
		fmt.Fprintf(stdout, "faults: %d\n", stats.Faults)
		fmt.Fprintf(stdout, "reads: %d\n", stats.Reads)
		fmt.Fprintf(stdout, "writes: %d\n", stats.Writes)
		if compressed {
			fmt.Fprintf(stdout, "compression: %d of %d bytes stored (ratio %.3f)\n",
				compStats.TotalBytesStored, compStats.TotalBytesOriginal, compStats.GetStoredRatio())
		}
	}
	return 0
}

// loadConfig layers VIRTMEM_* variables over the JSON file, or over the
// defaults when no file is given
func loadConfig(path string) (*vm.Config, error) {
	if path == "" {
		return vm.LoadConfigFromEnv(), nil
	}
	cfg, err := vm.LoadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}
