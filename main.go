package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/kardianos/osext"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	gamemixer "github.com/gamemixer/gamemixer-api/internal"
	"github.com/gamemixer/gamemixer-api/internal/auth"
	"github.com/gamemixer/gamemixer-api/internal/ctxhelper"
	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/media/cloudflare"
	"github.com/gamemixer/gamemixer-api/internal/migrate"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/notify"
	"github.com/gamemixer/gamemixer-api/internal/repos"
	eventredis "github.com/gamemixer/gamemixer-api/internal/repos/event/redis"
	eventsql "github.com/gamemixer/gamemixer-api/internal/repos/event/sqldb"
	recordredis "github.com/gamemixer/gamemixer-api/internal/repos/record/redis"
	recordsql "github.com/gamemixer/gamemixer-api/internal/repos/record/sqldb"
	revocationrepo "github.com/gamemixer/gamemixer-api/internal/repos/revocation/inmem"
	userrepo "github.com/gamemixer/gamemixer-api/internal/repos/user/sqldb"
)

const (
	appName    = "Game Mixer"
	appVersion = "1.0.0"
	dbFile     = "gamemixer.db"
)

// Checks and tries to create the given directory recursively (or panics if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else {
		if !fileInfo.IsDir() {
			logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
		}
	}
}

// Applies the log configuration to the standard logger
func configureLogging(conf models.LogConfig, logger *logrus.Entry) {
	if strings.EqualFold(conf.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		logger.WithError(err).Warnf("Unknown log level '%s' - using 'info'", conf.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// Opens the relational database. SQLite databases are placed inside the data directory if no DSN is given
func openDatabase(conf models.AppConfig, logger *logrus.Entry) (*sqlx.DB, error) {
	dsn := conf.Database.DSN
	if conf.Database.Driver == "sqlite3" {
		if dsn == "" {
			dsn = filepath.Join(conf.DataDir, dbFile)
		}
		if !strings.Contains(dsn, "_foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_foreign_keys=on"
		}
	}
	logger.WithField("driver", conf.Database.Driver).Info("Opening database connection")
	db, err := sqlx.Open(conf.Database.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if conf.Database.Driver == "sqlite3" {
		// SQLite does not like concurrent writers
		db.SetMaxOpenConns(1)
	}
	return db, db.Ping()
}

// Opens the Redis connection if one of the storage backends needs it
func openRedis(ctx context.Context, conf models.AppConfig, logger *logrus.Entry) (*redis.Client, error) {
	if conf.Storage.Events != models.BackendRedis && conf.Storage.Records != models.BackendRedis {
		return nil, nil
	}
	logger.WithField("addr", conf.Redis.Addr).Info("Connecting to Redis")
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return client, client.Ping(ctx).Err()
}

func selectEventRepo(conf models.AppConfig, db *sqlx.DB, rdb *redis.Client, logger *logrus.Entry) (repos.EventRepo, error) {
	switch conf.Storage.Events {
	case models.BackendSQL:
		return eventsql.New(db, logger), nil
	case models.BackendRedis:
		return eventredis.New(rdb, logger), nil
	}
	return nil, fmt.Errorf("unknown event storage backend '%s'", conf.Storage.Events)
}

func selectRecordRepo(conf models.AppConfig, db *sqlx.DB, rdb *redis.Client, logger *logrus.Entry) (repos.RecordRepo, error) {
	switch conf.Storage.Records {
	case models.BackendSQL:
		return recordsql.New(db, logger), nil
	case models.BackendRedis:
		return recordredis.New(rdb, logger), nil
	}
	return nil, fmt.Errorf("unknown record storage backend '%s'", conf.Storage.Records)
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.yaml"),
		"The configuration file to load the application's configuration from",
	)
	envFile := flag.String(
		"env",
		".env",
		"File with environment variables to load before reading the configuration",
	)
	flag.Parse()

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = ctxhelper.WithLogger(ctx, logger)

	// Load the main configuration file
	cs := gamemixer.NewConfigService(*configFile, *envFile)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Error("Cannot load config. Using defaults")
	}
	conf := cs.GetConfig(ctx)
	configureLogging(conf.Log, logger)

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Set up the database connection and perform pending migrations
	db, err := openDatabase(conf, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	defer db.Close()
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		logger.WithError(err).Fatal("Database migration has failed. Please check database for consistency and try again.")
	}

	rdb, err := openRedis(ctx, conf, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	eventRepo, err := selectEventRepo(conf, db, rdb, logger.WithField(log.FldRepo, "events"))
	if err != nil {
		logger.WithError(err).Fatal("Cannot set up event storage")
	}
	recordRepo, err := selectRecordRepo(conf, db, rdb, logger.WithField(log.FldRepo, "records"))
	if err != nil {
		logger.WithError(err).Fatal("Cannot set up record storage")
	}
	userRepo := userrepo.New(db, logger.WithField(log.FldRepo, "users"))
	revocationRepo := revocationrepo.New()
	defer revocationRepo.Close()

	if err = gamemixer.EnsureDefaultAdmin(ctx, userRepo, conf.Auth.DefaultUser, logger); err != nil {
		logger.WithError(err).Fatal("Failed to create the default admin")
	}

	tokens, err := auth.NewTokens(conf.Auth.JWTSecret, conf.Auth.TokenTTL)
	if err != nil {
		logger.WithError(err).Fatal("Cannot set up access tokens. Please configure auth.jwt_secret")
	}

	mediaStore := cloudflare.New(conf.Cloudflare, logger.WithField(log.FldTransport, "Cloudflare"))
	mailer := notify.NewMailer(conf.Mail, logger.WithField(log.FldTransport, "SMTP"))
	messages := notify.NewMessages(conf.Mail.OrgName, conf.Mail.Sender)

	services := gamemixer.Services{
		Events:    gamemixer.NewEventService(eventRepo, mediaStore, logger),
		Donations: gamemixer.NewDonationService(recordRepo, mailer, messages, logger),
		Payments:  gamemixer.NewPaymentService(recordRepo, mailer, messages, logger),
		Contacts:  gamemixer.NewContactService(recordRepo, mailer, messages, logger),
		Sessions:  gamemixer.NewSessionService(tokens, revocationRepo, userRepo, logger),
	}

	httpLogger := logger.WithField(log.FldTransport, "HTTP")
	srv := &http.Server{
		Addr:              conf.ListenAddress,
		Handler:           gamemixer.MakeHTTPHandler(services, conf.RateLimit, httpLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start listening
	errs := make(chan error, 2)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		daemon.SdNotify(false, "STOPPING=1")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Pending requests have been cancelled")
		}
		errs <- err
	}()

	go func() {
		httpLogger.WithField("addr", conf.ListenAddress).Info("Starting listening port")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := conf.ListenAddress[strings.LastIndex(conf.ListenAddress, ":")+1:]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if resp, err := http.Get(url); err == nil {
				resp.Body.Close()
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutdown complete")
}
