package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brontes/usereditor/internal/server"
	"github.com/brontes/usereditor/internal/service"
	"github.com/brontes/usereditor/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		driver string
		dsn    string
		dev    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the user administration API server",
		Long:  "Start the HTTP server that exposes the user management REST API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, driver, dsn, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver: sqlite, postgres, mysql, sqlserver")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN (for sqlite: a data directory, empty for in-memory)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("database.driver", cmd.Flags().Lookup("driver"))
	viper.BindPFlag("database.dsn", cmd.Flags().Lookup("dsn"))

	return cmd
}

func runServe(host string, port int, driver, dsn string, dev bool) error {
	logger := newLogger(dev)

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("init user store: %w", err)
	}
	logger.Info("user store initialized", "driver", storeDriver())

	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		if !dev {
			st.Close()
			return fmt.Errorf("auth.jwt_secret is not set (use USEREDITOR_AUTH_JWT_SECRET or the config file)")
		}
		jwtSecret = "usereditor-dev-secret-change-me"
		logger.Warn("using the built-in development JWT secret")
	}
	authSvc := service.NewAuthService(st, jwtSecret)

	hasUser, err := st.HasAnyUser(context.Background())
	if err != nil {
		logger.Warn("failed to check for existing accounts", "error", err)
	}
	if !hasUser {
		logger.Warn("no accounts found - run: usereditor user create")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = viper.GetString("server.host")
	srvCfg.Port = viper.GetInt("server.port")
	if srvCfg.Host == "" {
		srvCfg.Host = host
	}
	if srvCfg.Port == 0 {
		srvCfg.Port = port
	}
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if rate := viper.GetInt("server.login_rate_per_minute"); rate > 0 {
		srvCfg.LoginRatePerMinute = rate
	}
	if ttl, err := time.ParseDuration(viper.GetString("auth.jwt_expiry")); err == nil && ttl > 0 {
		srvCfg.SessionTTL = ttl
	}
	if timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout")); err == nil && timeout > 0 {
		srvCfg.ShutdownTimeout = timeout
	}

	srv := server.New(srvCfg, st, authSvc, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ OpenAPI: http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

func newLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("logging.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("logging.format") == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func storeDriver() string {
	driver := viper.GetString("database.driver")
	if driver == "" {
		driver = store.DriverSQLite
	}
	return driver
}

// openStore opens the user store selected by the effective configuration.
func openStore() (*store.Store, error) {
	return store.Open(storeDriver(), viper.GetString("database.dsn"))
}
