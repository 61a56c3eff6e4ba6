package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stagecall/internal/core/services/layout"
	"stagecall/internal/infrastructure/backend"
	"stagecall/internal/infrastructure/monitoring"
	"stagecall/internal/infrastructure/rtc"
	"stagecall/internal/session"
	"stagecall/pkg/config"
	"stagecall/pkg/logger"
	"stagecall/pkg/timeutil"
	"stagecall/pkg/tracing"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml")
		meetingID  = flag.String("meeting", "", "meeting ID to join")
		joinToken  = flag.String("token", "", "join token")
		name       = flag.String("name", "", "display name")
		email      = flag.String("email", "", "account email")
	)
	flag.Parse()

	if *meetingID == "" || *joinToken == "" {
		fmt.Fprintln(os.Stderr, "usage: stagecall -meeting <id> -token <jwt> [-name <name>] [-email <email>]")
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	metrics := monitoring.NewCollector()
	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, log)
	}

	devices := rtc.NewDeviceSource(
		syntheticSource(20*time.Millisecond),
		syntheticSource(33*time.Millisecond),
		syntheticSource(33*time.Millisecond),
		log,
	)
	transport := rtc.NewTransport(cfg.Transport.SignalingURL, iceServers(cfg), log)
	api := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	joinCtx, joinCancel := context.WithTimeout(ctx, cfg.Transport.JoinTimeout)
	sess, err := session.Dial(joinCtx, session.Options{
		MeetingID: *meetingID,
		JoinToken: *joinToken,
		Name:      *name,
		Email:     *email,
	}, session.Deps{
		Backend:              api,
		Transport:            transport,
		Devices:              devices,
		Metrics:              metrics,
		Layout:               layoutConfig(cfg),
		RosterPollsPerMinute: cfg.Roster.PollsPerMinute,
		RosterBurst:          cfg.Roster.Burst,
		Log:                  log,
	})
	joinCancel()
	if err != nil {
		if cd, ok := session.Countdown(err); ok {
			log.Info("meeting has not started yet",
				zap.String("starts_in", timeutil.FormatCountdown(cd.Remaining())))
			os.Exit(1)
		}
		log.Fatal("join failed", zap.Error(err))
	}

	log.Info("joined meeting",
		zap.String("title", sess.Meeting().Title),
		zap.String("session_id", sess.ID()))

	// Run until interrupted, logging participant changes.
	for {
		select {
		case <-ctx.Done():
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := sess.Leave(leaveCtx); err != nil {
				log.Warn("teardown finished with errors", zap.Error(err))
			}
			leaveCancel()
			return
		case <-sess.Updates():
			for _, p := range sess.Participants() {
				log.Info("participant",
					zap.String("identity", string(p.Identity)),
					zap.String("name", p.Name()),
					zap.Bool("camera", p.HasCamera),
					zap.Bool("mic", p.HasMic),
					zap.Bool("screen", p.HasScreenShare))
			}
		}
	}
}

func loadConfig(explicit string) *config.Config {
	paths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}
	if explicit != "" {
		paths = []string{explicit}
	}

	for _, path := range paths {
		cfg, err := config.Load(path)
		if err == nil {
			return cfg
		}
	}
	return config.DefaultConfig()
}

func layoutConfig(cfg *config.Config) layout.Config {
	return layout.Config{
		MinTileWidth: cfg.Layout.MinTileWidth,
		TileGap:      cfg.Layout.TileGap,
		HeaderHeight: cfg.Layout.HeaderHeight,
		FooterHeight: cfg.Layout.FooterHeight,
		FixedPadding: cfg.Layout.FixedPadding,
	}
}

func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.Transport.ICEServers))
	for _, s := range cfg.Transport.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

func serveMetrics(port int, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info("metrics endpoint up", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics endpoint failed", zap.Error(err))
	}
}

// syntheticSource is a stand-in capture pipeline that ticks empty
// samples at the given frame interval. A real deployment injects
// openers backed by actual capture devices.
func syntheticSource(interval time.Duration) rtc.CaptureOpener {
	return func(ctx context.Context, track *rtc.LocalTrack, end func()) (func(), error) {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					track.WriteSample(media.Sample{Data: []byte{0}, Duration: interval})
				}
			}
		}()
		stop := func() { close(done) }
		return stop, nil
	}
}
