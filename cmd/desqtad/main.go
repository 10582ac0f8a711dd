package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/ar-cyber/TauriSEQTA/analytics"
	"github.com/ar-cyber/TauriSEQTA/auth"
	"github.com/ar-cyber/TauriSEQTA/auth/handshake"
	"github.com/ar-cyber/TauriSEQTA/internal/appdirs"
	"github.com/ar-cyber/TauriSEQTA/internal/config"
	"github.com/ar-cyber/TauriSEQTA/portal"
	"github.com/ar-cyber/TauriSEQTA/server"
	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/ar-cyber/TauriSEQTA/settings"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running backend: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Backend stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	dataDir, err := appdirs.DataDir()
	if err != nil {
		return fmt.Errorf("appdirs.DataDir %w", err)
	}

	profile, err := handshake.LoadProfile(c.GetPortalProfilePath())
	if err != nil {
		return fmt.Errorf("handshake.LoadProfile %w", err)
	}

	store := session.NewFileStore(dataDir)
	events := server.NewEventHub()
	surface := server.NewSurfaceBridge(events)

	authService, err := auth.NewService(
		store,
		handshake.New(profile, handshake.WithLogger(logger)),
		surface,
		events,
		auth.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("auth.NewService %w", err)
	}

	bridge, err := server.New(c, server.Deps{
		Store:     store,
		Auth:      authService,
		Portal:    portal.NewClient(store, portal.WithLogger(logger)),
		Settings:  settings.NewStore(dataDir),
		Analytics: analytics.NewStore(dataDir),
		Events:    events,
		Surface:   surface,
	}, logger)
	if err != nil {
		return fmt.Errorf("server.New %w", err)
	}

	go listenAndServe(bridge, c.GetListenAddr(), logger)
	waitForStopSignal()
	returnError = shutdown(bridge)
	return returnError
}

func listenAndServe(bridge *server.Server, addr string, logger zerolog.Logger) {
	logger.Info().Str("addr", addr).Msg("bridge listening")
	if err := bridge.Start(); err != nil {
		logger.Error().Err(err).Msg("bridge stopped")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(bridge *server.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridge.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
