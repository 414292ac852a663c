// Command simulate drives a Chord overlay end-to-end in a single
// process: it builds a ring, inserts and removes nodes, stores and
// looks up a handful of keys, takes a snapshot, restores it, and logs
// a health-check report. It replaces the teacher's gRPC node bootstrap
// (cmd/node) since this core has no network transport to stand up.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"chorddht/internal/config"
	"chorddht/internal/logger"
	zapfactory "chorddht/internal/logger/zap"
	"chorddht/internal/overlay"
	"chorddht/internal/sink"
	"chorddht/internal/snapshot"
)

var defaultConfigPath = "config/simulate/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)
	lgr = lgr.Named("simulate")

	counters := sink.NewCounters()
	ov, err := overlay.Create(overlay.Config{
		Bits:                   cfg.Ring.Bits,
		InitialIDs:             []uint64{0},
		StabilizationPassesCap: cfg.Ring.StabilizationPasses,
		Sink:                   counters,
		Logger:                 lgr,
	})
	if err != nil {
		lgr.Error("failed to create overlay", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("overlay created", logger.F("bits", cfg.Ring.Bits), logger.F("nodes", ov.NodeCount()))

	for _, id := range []uint64{4, 2, 6, 1} {
		if err := ov.InsertNode(id % ov.Space().Size()); err != nil {
			lgr.Warn("insert_node failed", logger.F("id", id), logger.F("err", err))
			continue
		}
		stabilizePeriodically(ov, cfg.Ring.StabilizationInterval, lgr)
	}
	lgr.Info("ring grown", logger.F("nodes", ov.NodeCount()))

	items := map[string]string{
		"alpha":   "A",
		"bravo":   "B",
		"charlie": "C",
	}
	for name, value := range items {
		placedOn, err := ov.Put(name, []byte(value))
		if err != nil {
			lgr.Error("put failed", logger.F("name", name), logger.F("err", err))
			continue
		}
		lgr.Info("put", logger.F("name", name), logger.F("node", placedOn.String()))
	}

	for name := range items {
		val, err := ov.Lookup(name)
		if err != nil {
			lgr.Error("lookup failed", logger.F("name", name), logger.F("err", err))
			continue
		}
		lgr.Info("lookup", logger.F("name", name), logger.F("value", string(val)))
	}

	if err := ov.RemoveNode(2); err != nil {
		lgr.Warn("remove_node failed", logger.F("err", err))
	}
	if err := ov.Rebalance(); err != nil {
		lgr.Warn("rebalance did not converge", logger.F("err", err))
	}

	doc, err := ov.Snapshot(time.Now())
	if err != nil {
		lgr.Error("snapshot failed", logger.F("err", err))
		os.Exit(1)
	}
	encoded, err := snapshot.Encode(doc)
	if err != nil {
		lgr.Error("snapshot encode failed", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("snapshot captured", logger.F("bytes", len(encoded)))

	decoded, err := snapshot.Decode(encoded)
	if err != nil {
		lgr.Error("snapshot decode failed", logger.F("err", err))
		os.Exit(1)
	}
	restored, err := overlay.Create(overlay.Config{Bits: cfg.Ring.Bits, Logger: lgr})
	if err != nil {
		lgr.Error("failed to allocate restore target", logger.F("err", err))
		os.Exit(1)
	}
	if err := restored.Restore(decoded); err != nil {
		lgr.Error("restore failed", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("snapshot restored", logger.F("nodes", restored.NodeCount()))
	ov = restored

	report := ov.HealthCheck()
	lgr.Info("health check",
		logger.F("nodes", report.NodeCount),
		logger.F("keys", report.KeyCount),
		logger.F("clean", report.Clean()),
	)

	snap := counters.Snapshot()
	lgr.Info("final counters",
		logger.F("total_nodes", snap.TotalNodes),
		logger.F("total_keys", snap.TotalKeys),
		logger.F("lookup_hops", snap.LookupHops),
	)
}

// stabilizePeriodically runs a few StabilizeAll sweeps spaced by
// interval, standing in for the periodic background scheduler the
// core itself deliberately does not own (see the "stabilization in
// background" design note): the core exposes StabilizeAll, a higher
// layer decides when to call it. A zero interval falls back to a
// single immediate sweep.
func stabilizePeriodically(ov *overlay.Overlay, interval time.Duration, lgr logger.Logger) {
	if interval <= 0 {
		ov.StabilizeAll()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; i < 3; i++ {
		<-ticker.C
		ov.StabilizeAll()
	}
	lgr.Debug("stabilize_periodically: swept", logger.F("interval", interval.String()))
}
