package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/config"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/database"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/logging"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coffeeshop-api",
		Short: "Coffee shop drinks API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "reset-db",
		Short: "Drop all drinks and insert the demo drink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetDatabase(cmd.Context())
		},
	})

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "PostgreSQL DSN (overrides env)")
	cmd.PersistentFlags().String("auth-domain", defaults.GetString("auth.domain"), "Token issuer domain")
	cmd.PersistentFlags().String("auth-audience", defaults.GetString("auth.audience"), "Expected token audience")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for the shared key-set cache")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "auth.domain", "auth-domain")
	bindFlag(cmd, "auth.audience", "auth-audience")
	bindFlag(cmd, "redis.address", "redis-address")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(databaseConfig(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var sharedCache auth.KeySetCache
	if appConfig.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     appConfig.Redis.Address,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		defer redisClient.Close()

		sharedCache, err = auth.NewRedisKeySetCache(redisClient, appConfig.Redis.Key, appConfig.Auth.KeySetCacheTTL)
		if err != nil {
			return err
		}
		logger.Info("shared key set cache enabled", zap.String("redis_address", appConfig.Redis.Address))
	}

	keyProvider, err := auth.NewJWKSProvider(auth.JWKSProviderConfig{
		URL:                appConfig.Auth.KeySetURL,
		CacheTTL:           appConfig.Auth.KeySetCacheTTL,
		FetchTimeout:       appConfig.Auth.KeySetFetchTimeout,
		MinRefreshInterval: appConfig.Auth.KeySetRefreshInterval,
		SharedCache:        sharedCache,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	validator, err := auth.NewTokenValidator(auth.TokenValidatorConfig{
		Issuer:     appConfig.Auth.Issuer,
		Audience:   appConfig.Auth.Audience,
		Algorithms: appConfig.Auth.Algorithms,
		Keys:       keyProvider,
	})
	if err != nil {
		return err
	}

	guard, err := auth.NewGuard(validator)
	if err != nil {
		return err
	}

	drinksService, err := drinks.NewService(drinks.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Authorizer:     guard,
		DrinksService:  drinksService,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("issuer", appConfig.Auth.Issuer),
			zap.String("database_driver", appConfig.Database.Driver),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runResetDatabase(ctx context.Context) error {
	appConfig, err := config.LoadStorage(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(databaseConfig(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	_, err = database.ResetWithDemo(ctx, db, logger)
	return err
}

func databaseConfig(appConfig config.AppConfig) database.Config {
	return database.Config{
		Driver: appConfig.Database.Driver,
		Path:   appConfig.Database.Path,
		DSN:    appConfig.Database.DSN,
	}
}
