package vm

import (
	"errors"
	"log/slog"

	"github.com/sibexico/virtmem/storage"
)

// Simulator wires a backing store, a Pager and a PageTable together for one run
type Simulator struct {
	config    *Config
	disk      storage.BackingStore
	pager     *Pager
	pageTable *PageTable
	logger    *slog.Logger
}

// Open validates cfg and builds every component of the simulation.
// Unknown policies and backends are rejected here, before any access runs.
func Open(cfg *Config, logger *slog.Logger) (*Simulator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	disk, err := storage.OpenBackingStore(cfg.StoreOptions())
	if err != nil {
		return nil, err
	}

	pager, err := NewPager(cfg.NumFrames, policy, cfg.Seed, disk, logger)
	if err != nil {
		disk.Close()
		return nil, err
	}

	pt, err := NewPageTable(cfg.NumPages, cfg.NumFrames, pager)
	if err != nil {
		disk.Close()
		return nil, err
	}

	logger.Debug("simulator ready",
		slog.Uint64("pages", uint64(cfg.NumPages)),
		slog.Uint64("frames", uint64(cfg.NumFrames)),
		slog.String("policy", policy.String()),
		slog.String("backend", cfg.DiskBackend),
		slog.String("compression", cfg.Compression),
		slog.Uint64("seed", cfg.Seed),
	)

	return &Simulator{
		config:    cfg.Clone(),
		disk:      disk,
		pager:     pager,
		pageTable: pt,
		logger:    logger,
	}, nil
}

// PageTable returns the simulated MMU workloads access memory through
func (s *Simulator) PageTable() *PageTable {
	return s.pageTable
}

func (s *Simulator) Pager() *Pager {
	return s.pager
}

// Stats returns the paging counters
func (s *Simulator) Stats() Stats {
	return s.pager.Metrics().Snapshot()
}

// Check verifies the frame/page table invariants
func (s *Simulator) Check() error {
	return s.pager.CheckConsistency(s.pageTable)
}

// CompressionStats reports what the backing store saved by compressing
// pages. ok is false when compression is off.
func (s *Simulator) CompressionStats() (stats storage.PageCompressionStats, ok bool) {
	cd, ok := s.disk.(*storage.CompressedDisk)
	if !ok {
		return stats, false
	}
	return cd.Stats(), true
}

// Close flushes dirty frames, releases memory and closes the backing store
func (s *Simulator) Close() error {
	flushErr := s.pager.Flush(s.pageTable)
	s.pageTable.Dump(s.logger)
	s.pager.Metrics().LogMetrics(s.logger)
	if cd, ok := s.disk.(*storage.CompressedDisk); ok {
		cd.LogStats(s.logger)
	}
	s.pageTable.Close()
	return errors.Join(flushErr, s.disk.Close())
}
