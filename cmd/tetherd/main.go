package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"tetherd/internal/config"
	"tetherd/internal/leases"
	"tetherd/internal/metrics"
	"tetherd/internal/process"
	"tetherd/internal/system"
	"tetherd/internal/tether"
	"tetherd/internal/web"
	"tetherd/pkg/models"
	"tetherd/pkg/utils"
)

const (
	defaultConfigFile = "tetherd.ini"
)

var (
	sha1ver   string
	buildTime string
	repoName  string
)

func main() {
	configFile := flag.String("config", defaultConfigFile, "Path to the INI config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.WithFields(log.Fields{
		"build": sha1ver,
		"time":  buildTime,
	}).Infof("%s starting", repoName)

	// Load configuration
	cfg, err := config.New(*configFile)
	utils.CheckFatal(err, "Failed to load configuration")
	cfg.ApplyLogLevel()

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New(sha1ver)
	}

	procFS, err := process.NewProcFS(cfg.ProcDir)
	utils.CheckFatal(err, "Failed to open procfs")

	sys := system.New(system.ExecRunner{}, system.Options{
		ProcDir: cfg.ProcDir,
		Su:      cfg.Su,
		GetProp: cfg.GetProp,
	})
	core := tether.New(cfg, sys, process.NewCache(procFS), m)

	if core.FilesetOutdated() {
		log.WithField("expected", cfg.FilesetVersion).Warn("Installed fileset is outdated, reinstall required")
	}
	if !sys.HasRoot() {
		log.Warn("No root access, interface and NAT setup will fail")
	} else if core.FilesetInstalled() {
		err = core.PrepareBinaries(context.Background())
		utils.CheckWarn(err, "Failed to make fileset binaries executable")
	}
	_, err = core.UpdateDnsmasqPaths()
	utils.CheckWarn(err, "Failed to update dnsmasq paths")

	// Initialize lease monitor
	monitor := leases.NewMonitor(core.Paths().Leases, func(clients map[string]models.Client) {
		log.WithField("clients", len(clients)).Info("DHCP leases changed")
		if m != nil {
			m.Clients.Set(float64(len(clients)))
		}
	})
	if err := monitor.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start lease monitor")
	}
	defer monitor.Stop()

	// Initialize web server
	webServer := web.NewServer(cfg, core, monitor, m)
	go func() {
		if err := webServer.Start(); err != nil {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Failed to shut down web server")
	}
}
