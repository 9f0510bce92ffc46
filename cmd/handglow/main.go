package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/handglow/internal/capture"
	"github.com/ayusman/handglow/internal/config"
	"github.com/ayusman/handglow/internal/detector"
	"github.com/ayusman/handglow/internal/logging"
	"github.com/ayusman/handglow/internal/render"
	"github.com/ayusman/handglow/internal/server"
	"github.com/ayusman/handglow/internal/session"
	"github.com/ayusman/handglow/internal/store"
	"github.com/ayusman/handglow/internal/tray"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "camera device index")
	flag.IntVar(&cfg.ViewportW, "width", cfg.ViewportW, "canvas width")
	flag.IntVar(&cfg.ViewportH, "height", cfg.ViewportH, "canvas height")
	flag.BoolVar(&cfg.Mirror, "mirror", cfg.Mirror, "mirror the canvas horizontally")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "session journal database (empty disables)")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory of static viewer files")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotated log file (empty disables)")
	flag.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show a system tray menu")
	flag.BoolVar(&cfg.AutoStart, "autostart", cfg.AutoStart, "start the camera on launch")
	flag.BoolVar(&cfg.UseMockHands, "mock", cfg.UseMockHands, "use a scripted detector instead of MediaPipe")
	flag.Parse()

	logger := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	logger.Info("Handglow - hand landmark glow renderer")

	var sink session.EventSink
	var st *store.Store
	if cfg.DBPath != "" {
		var err error
		st, err = store.New(cfg.DBPath)
		if err != nil {
			logger.Fatalf("Failed to initialize store: %v", err)
		}
		defer st.Close()

		if n, err := st.Runs().CloseDangling(time.Now()); err != nil {
			logger.WithError(err).Warn("close dangling runs")
		} else if n > 0 {
			logger.WithField("runs", n).Info("closed runs left open by a previous process")
		}
		sink = store.NewJournal(st)
	}

	face, err := render.LabelFont(render.LabelFontSize)
	if err != nil {
		logger.WithError(err).Warn("landmark labels disabled")
	}

	ctrl := session.New(session.Options{
		Detectors: detectorFactory(cfg, logger),
		Cameras: func(width, height int) capture.Camera {
			return capture.NewCamera(cfg.CameraID, width, height)
		},
		Renderer:      render.New(render.Options{Mirror: cfg.Mirror, Font: face}),
		Viewport:      render.Viewport{Width: cfg.ViewportW, Height: cfg.ViewportH},
		CaptureWidth:  cfg.CaptureW,
		CaptureHeight: cfg.CaptureH,
		Sink:          sink,
		Log:           logger,
	})
	defer ctrl.Close()

	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New()
	}

	updates, cancelUpdates := ctrl.Subscribe()
	defer cancelUpdates()
	go watchStatus(updates, tr, logger)

	if err := ctrl.Initialize(); err != nil {
		logger.WithError(err).Error("hand tracking unavailable")
	}
	if cfg.AutoStart {
		if err := ctrl.StartCamera(); err != nil {
			logger.WithError(err).Error("camera start failed")
		}
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.WithField("dir", staticDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Session:   ctrl,
		Store:     st,
		Log:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			stop()
		}
	}()

	if tr != nil {
		tr.OnToggle(func(start bool) {
			if start {
				if err := ctrl.StartCamera(); err != nil {
					logger.WithError(err).Warn("camera start failed")
				}
				return
			}
			ctrl.StopCamera()
		})
		tr.OnOpen(func() { openBrowser(viewerURL(cfg.Addr), logger) })
		tr.OnQuit(stop)

		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		tr.Run()
	} else {
		<-ctx.Done()
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
}

// detectorFactory returns the MediaPipe detector, or a scripted open palm
// when mock is set.
func detectorFactory(cfg *config.Config, log logrus.FieldLogger) session.DetectorFactory {
	return func(dc detector.Config) (detector.Detector, error) {
		if cfg.UseMockHands {
			log.Info("Using mock hand detection")
			mock := detector.NewMockDetector()
			mock.SetHands([]detector.Hand{detector.OpenPalm()})
			return mock, nil
		}

		mp, err := detector.NewMediaPipeDetector(dc, cfg.ScriptPath)
		if err != nil {
			return nil, err
		}
		log.Info("Using MediaPipe hand detection")
		return mp, nil
	}
}

// watchStatus logs state changes and mirrors them in the tray.
func watchStatus(updates <-chan session.Status, tr *tray.Tray, log logrus.FieldLogger) {
	for status := range updates {
		entry := log.WithField("state", status.State)
		if status.Message != "" {
			entry.Warn(status.Message)
		} else {
			entry.Debug("session status")
		}

		if tr != nil {
			tr.SetRunning(status.State == session.Streaming)
			tr.SetStatus(status.State.String())
		}
	}
}

// viewerURL turns a listen address into a local URL.
func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, log logrus.FieldLogger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.WithError(err).WithField("url", url).Warn("open browser")
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DefaultDataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
