// Package app boots the service: database, migrations, admin seeding, and
// the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/config"
	"github.com/swipedeck/swipedeck/internal/db"
	"github.com/swipedeck/swipedeck/internal/http/api"
	"github.com/swipedeck/swipedeck/internal/models"
	"github.com/swipedeck/swipedeck/internal/ratelimit"
	"github.com/swipedeck/swipedeck/internal/security"
	"github.com/swipedeck/swipedeck/internal/session"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/swipe"
	"github.com/swipedeck/swipedeck/internal/tinder"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// SeedAdmin ensures the bootstrap admin from config exists. A blank
// username or password leaves the admin table untouched.
func SeedAdmin(conn *gorm.DB, adminCfg config.AdminConfig) error {
	username := strings.TrimSpace(adminCfg.Username)
	if username == "" || adminCfg.Password == "" {
		return nil
	}

	var existing models.Admin
	errFind := conn.Where("username = ?", username).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("app: check admin: %w", errFind)
	}

	hashed, errHash := security.HashPassword(adminCfg.Password)
	if errHash != nil {
		return fmt.Errorf("app: hash admin password: %w", errHash)
	}
	if errCreate := conn.Create(&models.Admin{
		Username: username,
		Password: hashed,
		Active:   true,
	}).Error; errCreate != nil {
		return fmt.Errorf("app: seed admin: %w", errCreate)
	}
	log.WithField("username", username).Info("seeded bootstrap admin")
	return nil
}

// RunServer boots the management API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	adminCfg, _ := config.LoadAdminConfig(configPath)
	if errSeed := SeedAdmin(conn, adminCfg); errSeed != nil {
		return errSeed
	}

	jwtCfg, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	upstreamCfg, errUpstream := config.LoadUpstreamConfig(configPath)
	if errUpstream != nil {
		return errUpstream
	}

	limiter := ratelimit.NewManager(nil, nil, nil)
	credentials := store.NewCredentialStore(conn)
	groups := store.NewGroupStore(conn)
	swipeSettings := store.NewSwipeSettingsStore(conn)
	sessions := session.NewRegistry(credentials, upstreamCfg, limiter, nil)

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, api.Deps{
		DB:            conn,
		JWT:           jwtCfg,
		Credentials:   credentials,
		Groups:        groups,
		SwipeSettings: swipeSettings,
		Sessions:      sessions,
		Engine:        swipe.NewEngine(),
		Phone:         tinder.NewPhoneAuth(upstreamCfg.AuthBaseURL),
	})

	if defaultPort <= 0 {
		defaultPort = 8318
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultPort),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithField("addr", srv.Addr).Info("server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("app: shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", errServe)
		}
		return nil
	}
}
