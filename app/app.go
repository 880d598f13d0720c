package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/db"
	"github.com/deemkeen/stegofed/middleware"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/util"
	"github.com/deemkeen/stegofed/web"
)

var (
	_ activitypub.Database    = (*db.DB)(nil)
	_ middleware.SessionStore = (*db.DB)(nil)
	_ web.Store               = (*db.DB)(nil)
	_ common.Actions          = (*activitypub.Engine)(nil)
	_ web.Federation          = (*activitypub.Engine)(nil)
)

// App represents the main application with all its servers and dependencies
type App struct {
	config     *util.AppConfig
	database   *db.DB
	engine     *activitypub.Engine
	sshServer  *ssh.Server
	httpServer *http.Server
	stop       chan struct{}
	done       chan os.Signal
}

// New creates a new App instance with the given configuration
func New(conf *util.AppConfig) (*App, error) {
	return &App{
		config: conf,
		stop:   make(chan struct{}),
		done:   make(chan os.Signal, 1),
	}, nil
}

// Initialize sets up the database, the federation engine and both servers
func (a *App) Initialize() error {
	log.Println("Running database migrations...")
	a.database = db.GetDB()
	if err := a.database.RunMigrations(); err != nil {
		return fmt.Errorf("database migrations: %w", err)
	}
	log.Println("Database migrations complete")

	apConf := activitypub.ConfigFromApp(a.config)
	protocol := activitypub.NewHTTPProtocol(a.database, apConf, nil)
	a.engine = activitypub.NewEngine(a.database, protocol, apConf)

	// a nil *HTTPProtocol would not compare equal to a nil interface
	var resolver common.Resolver
	if a.config.Conf.WithAp {
		resolver = protocol
	}

	sshKeyPath := util.ResolveFilePathWithSubdir(".ssh", util.Name+"hostkey")
	log.Printf("Using SSH host key at: %s", sshKeyPath)

	sshServer, err := wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", a.config.Conf.Host, a.config.Conf.SshPort)),
		wish.WithHostKeyPath(sshKeyPath),
		wish.WithPublicKeyAuth(a.allowKey),
		wish.WithMiddleware(
			middleware.MainTui(apConf, a.database, a.engine, resolver),
			middleware.AuthMiddleware(apConf, a.database),
			logging.MiddlewareWithLogger(log.Default()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create SSH server: %w", err)
	}
	a.sshServer = sshServer

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Conf.HttpPort),
		Handler: web.Router(a.config, a.engine, a.database, a.stop),
	}

	return nil
}

// allowKey admits every key unless registration is closed, then only known ones
func (a *App) allowKey(_ ssh.Context, key ssh.PublicKey) bool {
	if !a.config.Conf.Closed {
		return true
	}
	err, acc := a.database.ReadAccByPkHash(util.PkToHash(util.PublicKeyToString(key)))
	return err == nil && acc != nil
}

// Start starts all servers and blocks until a shutdown signal is received
func (a *App) Start() error {
	signal.Notify(a.done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting SSH server on %s:%d", a.config.Conf.Host, a.config.Conf.SshPort)
	go func() {
		if err := a.sshServer.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
			log.Fatalf("SSH server error: %v", err)
		}
	}()

	log.Printf("Starting HTTP server on %s:%d", a.config.Conf.Host, a.config.Conf.HttpPort)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-a.done
	log.Println("Shutdown signal received")

	return a.Shutdown()
}

// Shutdown stops accepting work, drains pending deliveries and closes the database.
// Everything shares a 30 second budget.
func (a *App) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	keep := func(err error) {
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	// HTTP first so no new inbox deliveries arrive
	log.Println("Stopping HTTP server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		keep(err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	log.Println("Stopping SSH server...")
	if err := a.sshServer.Shutdown(ctx); err != nil {
		log.Printf("SSH server shutdown error: %v", err)
		keep(err)
	} else {
		log.Println("SSH server stopped gracefully")
	}

	log.Println("Waiting for outgoing deliveries...")
	if err := a.engine.Shutdown(ctx); err != nil {
		log.Printf("Delivery drain interrupted: %v", err)
		keep(err)
	}
	close(a.stop)

	if err := a.database.Close(); err != nil {
		log.Printf("Database close error: %v", err)
		keep(err)
	}

	log.Println("All servers stopped")
	return shutdownErr
}
