// Command seismatch correlates template waveforms against continuous day
// files and appends detections to per-template match files.
//
// Usage:
//
//	seismatch [flags] [template-file ...]
//
// Without arguments every template in the template directory is matched.
// Templates that already have a match file are skipped. Templates are
// grouped by channel and length, and each group runs as one independent
// matching pass over the channel's day files.
//
// Directories and thresholds may also come from the environment (loaded from
// a .env file if present): SEISMATCH_DATA_DIR, SEISMATCH_TEMPLATE_DIR,
// SEISMATCH_MATCH_DIR, SEISMATCH_CATALOG, SEISMATCH_DEVICE_BUDGET.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwbudde/algo-seismic/catalog"
	"github.com/cwbudde/algo-seismic/detect"
	"github.com/cwbudde/algo-seismic/match"
	"github.com/cwbudde/algo-seismic/waveform"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seismatch:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; flags and defaults still apply.
	_ = godotenv.Load()

	dataDir := flag.String("data", envDefault("SEISMATCH_DATA_DIR", "data"), "continuous day-file directory")
	templateDir := flag.String("templates", envDefault("SEISMATCH_TEMPLATE_DIR", "templates"), "template directory")
	matchDir := flag.String("matches", envDefault("SEISMATCH_MATCH_DIR", "matches"), "match output directory")
	catalogPath := flag.String("catalog", os.Getenv("SEISMATCH_CATALOG"), "optional SQLite catalog path")
	startStr := flag.String("start", "", "first day to scan (YYYY-MM-DD)")
	stopStr := flag.String("stop", "", "last day to scan (YYYY-MM-DD)")
	rate := flag.Float64("rate", 50, "sampling rate of the template family in Hz")
	ccThr := flag.Float64("cc", 0.7, "correlation threshold in [0, 1]")
	madThr := flag.Float64("mad", 8, "MAD threshold multiplier")
	orMode := flag.Bool("or", false, "accept lags passing either threshold instead of both")
	budget := flag.Int64("budget", envInt64("SEISMATCH_DEVICE_BUDGET", 0), "device memory budget in bytes (0 = host mode)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	start, stop, err := parseRange(*startStr, *stopStr)
	if err != nil {
		return err
	}

	provider := waveform.NewDirProvider(*dataDir, *templateDir)

	templates := flag.Args()
	if len(templates) == 0 {
		templates, err = provider.Templates()
		if err != nil {
			return err
		}
	}

	// Skip templates that already have a match file.
	var pending []string
	for _, id := range templates {
		if _, err := os.Stat(filepath.Join(*matchDir, id)); err == nil {
			log.Debug("skipping already matched template", "id", id)
			continue
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		log.Info("no unprocessed templates found")
		return nil
	}

	sink, closeSink, err := buildSink(*matchDir, *catalogPath)
	if err != nil {
		return err
	}
	defer closeSink()

	params := match.Params{
		SamplingRate: *rate,
		CCThreshold:  *ccThr,
		MADThreshold: *madThr,
		Combine:      detect.CombineAnd,
	}
	if *orMode {
		params.Combine = detect.CombineOr
	}

	var backend match.Backend = match.HostBackend{}
	if *budget > 0 {
		backend = match.NewBudgetBackend(*budget)
	}

	log.Info("starting template matching", "templates", len(pending))
	var total match.Stats
	for _, group := range groupTemplates(pending, log) {
		segments := provider.Segments(group.channel, start, stop)
		if len(segments) == 0 {
			log.Info("no data found for channel", "channel", group.channel)
			continue
		}

		matcher, err := match.NewMatcher(params, provider, sink,
			match.WithBackend(backend), match.WithLogger(log))
		if err != nil {
			return err
		}

		stats, err := matcher.Run(group.ids, segments)
		if err != nil {
			return err
		}
		log.Info("group finished",
			"channel", group.channel,
			"length", group.length,
			"pairs", stats.Pairs,
			"detections", stats.Detections,
			"elapsed", stats.Elapsed)

		total.Pairs += stats.Pairs
		total.Detections += stats.Detections
		total.Dropped += stats.Dropped
		total.Skipped += stats.Skipped
		total.Clipped += stats.Clipped
	}

	log.Info("finished matching templates",
		"pairs", total.Pairs, "detections", total.Detections)
	return nil
}

// templateGroup is a set of templates sharing a channel and a length, which
// lets one matching pass share its FFT caches across the whole group.
type templateGroup struct {
	channel string
	length  int
	ids     []string
}

func groupTemplates(ids []string, log *slog.Logger) []templateGroup {
	byKey := make(map[string]*templateGroup)
	var order []string

	for _, id := range ids {
		channel, npts, err := waveform.ParseTemplateName(id)
		if err != nil {
			log.Warn("ignoring template with malformed name", "id", id, "err", err)
			continue
		}
		key := fmt.Sprintf("%s_%d", channel, npts)
		g, ok := byKey[key]
		if !ok {
			g = &templateGroup{channel: channel, length: npts}
			byKey[key] = g
			order = append(order, key)
		}
		g.ids = append(g.ids, id)
	}

	groups := make([]templateGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// buildSink assembles the detection sink: always the per-template match
// files, plus the SQLite catalog when configured.
func buildSink(matchDir, catalogPath string) (match.DetectionSink, func(), error) {
	fileSink, err := match.NewFileSink(matchDir)
	if err != nil {
		return nil, nil, err
	}

	if catalogPath == "" {
		return fileSink, func() { fileSink.Close() }, nil
	}

	cat, err := catalog.Open(catalogPath)
	if err != nil {
		fileSink.Close()
		return nil, nil, err
	}

	sink := teeSink{fileSink, cat}
	return sink, func() {
		fileSink.Close()
		cat.Close()
	}, nil
}

// teeSink forwards every detection to all member sinks.
type teeSink []match.DetectionSink

func (t teeSink) Append(d match.Detection) error {
	for _, s := range t {
		if err := s.Append(d); err != nil {
			return err
		}
	}
	return nil
}

func parseRange(startStr, stopStr string) (start, stop time.Time, err error) {
	stop = time.Now().UTC()
	start = stop.AddDate(0, 0, -30)

	if startStr != "" {
		start, err = time.Parse(dateLayout, startStr)
		if err != nil {
			return start, stop, fmt.Errorf("invalid -start date: %w", err)
		}
	}
	if stopStr != "" {
		stop, err = time.Parse(dateLayout, stopStr)
		if err != nil {
			return start, stop, fmt.Errorf("invalid -stop date: %w", err)
		}
	}
	if stop.Before(start) {
		return start, stop, fmt.Errorf("-stop %s precedes -start %s", stop.Format(dateLayout), start.Format(dateLayout))
	}
	return start, stop, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
