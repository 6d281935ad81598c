package main

import (
	"flag"
	"log"
	"strings"

	"prfmonitor/config"
	"prfmonitor/database"
	"prfmonitor/jobs"
	"prfmonitor/logger"
	"prfmonitor/middleware"
	"prfmonitor/router"
	"prfmonitor/service"

	"go.uber.org/zap"
)

// @title PRF Monitor API
// @version 1.0
// @description Purchase request and budget monitoring: chart of accounts, budgets, PRFs and reconciliation.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const version = "1.0.0"

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "external config file (optional)")
	flag.StringVar(&configFile, "c", "", "external config file (shorthand)")
	flag.StringVar(&port, "port", "", "listen port, e.g. 8080 or :8080")
	flag.StringVar(&port, "p", "", "listen port (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&showVersion, "v", false, "print version (shorthand)")
}

func main() {
	flag.Parse()

	if showVersion {
		log.Println("prfmonitor v" + version)
		return
	}

	// embedded defaults, optional external file, then environment
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}

	config.PrintConfig()

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := database.Init(cfg); err != nil {
		logger.L.Fatal("database init failed", zap.Error(err))
	}

	middleware.InitJWT(cfg)

	if cfg.Jobs.Enabled {
		scheduler, err := jobs.New(cfg, database.DB, service.NewEmailService(&cfg.Email), logger.L)
		if err != nil {
			logger.L.Fatal("jobs init failed", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	r := router.SetupRouter(cfg)

	logger.L.Info("PRF Monitor started",
		zap.String("addr", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.String("swagger", "http://localhost"+cfg.Server.Port+"/swagger/index.html"))

	if err := r.Run(cfg.Server.Port); err != nil {
		logger.L.Fatal("server stopped", zap.Error(err))
	}
}
