// Command simulate runs the PHARR corridor engine headlessly against a
// synthetic world, for manual exercise and soak-testing of Corridor
// without a real GIS-backed WorldContext/ScenarioSource.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/corridor"
	"github.com/pthm-cable/pharr-corridor/telemetry"
)

var (
	configPath   = flag.String("config", "", "Path to a YAML config overlay (default: embedded defaults)")
	outputDir    = flag.String("output", "", "Directory to write telemetry/perf/overflow CSVs (disabled if empty)")
	logFile      = flag.String("logfile", "", "Write logs to file instead of stdout")
	speed        = flag.Float64("speed", 60, "Multiplier on the config's sim-time scale (sim_seconds_per_day / day_video_seconds)")
	maxSimHours  = flag.Float64("max-sim-hours", 24, "Stop after this many simulated hours (0 = run forever)")
	gridN        = flag.Int("grid-n", 60, "Side length of the synthetic grid, in cells")
	lotCount     = flag.Int("lots", 4, "Number of synthetic conversion lots")
	peakInflow   = flag.Float64("peak-inflow-kg-hr", 400000, "Peak hourly inflow at the gate, in kg")
	gateCapacity = flag.Float64("gate-capacity-kg-hr", 350000, "Gate drain capacity, in kg/hr")
	reportEveryS = flag.Float64("report-every-sim-s", 3600, "Simulated seconds between telemetry reports")
	perfWindow   = flag.Int("perf-window", 600, "Number of real ticks to average performance stats over")
	tickHz       = flag.Float64("tick-hz", 20, "Each Step is passed a real dt of 1/tick-hz seconds; the loop does not sleep")

	logWriter *os.File
)

func logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}

func main() {
	flag.Parse()

	if *logFile != "" {
		var err error
		logWriter, err = os.Create(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log file: %v\n", err)
			os.Exit(1)
		}
		defer logWriter.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output manager: %v\n", err)
		os.Exit(1)
	}
	if out != nil {
		defer out.Close()
		if err := out.WriteConfig(cfg); err != nil {
			logf("warning: failed to write config.yaml: %v", err)
		}
	}

	world := newSyntheticWorld(*gridN, *lotCount)
	scenario := &syntheticScenario{peakInflowKgPerHr: *peakInflow, gateCapKgPerHr: *gateCapacity}

	c := corridor.New(cfg)
	if err := c.Attach(world, scenario); err != nil {
		fmt.Fprintf(os.Stderr, "failed to attach corridor: %v\n", err)
		os.Exit(1)
	}
	defer c.Detach()
	c.SetSimSpeed(*speed)

	collector := telemetry.NewCollector(*reportEveryS)
	overflow := telemetry.NewOverflowDetector(cfg.Telemetry.OverflowWindowS, cfg.Telemetry.OverflowTopN)
	perf := telemetry.NewPerfCollector(*perfWindow)

	logf("Starting PHARR corridor simulation...")
	logf("  Grid: %dx%d cells, %d lots", *gridN, *gridN, *lotCount)
	logf("  Sim speed: %.1fx, tick rate: %.1fHz", *speed, *tickHz)
	if *maxSimHours > 0 {
		logf("  Max sim time: %.1f hours", *maxSimHours)
	}
	logf("")

	tickInterval := time.Duration(float64(time.Second) / *tickHz)
	startTime := time.Now()
	prevSimTime := c.SimTimeSec()

	for {
		perf.StartTick()
		c.Step(tickInterval)
		perf.EndTick()

		simTime := c.SimTimeSec()
		dtSim := simTime - prevSimTime
		prevSimTime = simTime

		if *maxSimHours > 0 && simTime >= *maxSimHours*3600 {
			logf("Reached max sim time (%.1f hours), stopping.", *maxSimHours)
			break
		}

		if collector.Advance(dtSim) {
			stats := collector.Flush(c.Metrics(), simTime)
			stats.LogStats()
			if out != nil {
				if err := out.WriteTelemetry(stats); err != nil {
					logf("warning: %v", err)
				}
				if err := out.WritePerf(perf.Stats(), int32(simTime)); err != nil {
					logf("warning: %v", err)
				}
			}
		}

		if incidents := overflow.Check(c.Lots(), simTime, dtSim); incidents != nil {
			for _, inc := range incidents {
				inc.LogIncident()
				if out != nil {
					if err := out.WriteOverflowIncident(inc); err != nil {
						logf("warning: %v", err)
					}
				}
			}
		}
	}

	elapsed := time.Since(startTime)
	m := c.Metrics()
	logf("")
	logf("Simulation complete.")
	logf("  Elapsed wall time: %s", elapsed.Round(time.Millisecond))
	logf("  Simulated time: %.1f hours", c.SimTimeSec()/3600)
	logf("  Total injected: %.0f kg, total drained: %.0f kg, total converted: %.0f kg", m.InjectedKg, m.DrainedKg, m.ConvertedKg)
	logf("  Routing rebuilds: %d, skipped frames: %d", m.RoutingRebuilds, m.SkippedFrames)
}
