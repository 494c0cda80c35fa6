package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"shopmunim-backend/internal/cache"
	"shopmunim-backend/internal/config"
	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/format"
	"shopmunim-backend/internal/handler"
	"shopmunim-backend/internal/notify"
	"shopmunim-backend/internal/otp"
	"shopmunim-backend/internal/ports"
	"shopmunim-backend/internal/repository"
	"shopmunim-backend/internal/server"
	"shopmunim-backend/internal/service"
	"shopmunim-backend/migrations"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stdout, nil)).Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	format.CurrencySymbol = cfg.CurrencySymbol

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, migrations.FS, logger); err != nil {
			logger.Error("failed to migrate database", "err", err)
			os.Exit(1)
		}
	}

	rdb, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect redis", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Firebase Auth and FCM (optional)
	var firebaseAuth *auth.Client
	var fcm *messaging.Client
	if cfg.FirebaseProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, firebaseOptions(cfg)...)
		if err != nil {
			logger.Error("failed to init firebase app", "err", err)
			os.Exit(1)
		}
		if firebaseAuth, err = app.Auth(ctx); err != nil {
			logger.Error("failed to init firebase auth", "err", err)
			os.Exit(1)
		}
		if fcm, err = app.Messaging(ctx); err != nil {
			logger.Error("failed to init firebase messaging", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("FIREBASE_PROJECT_ID not set; firebase login and push reminders are disabled")
	}

	// repositories
	userRepo := repository.UserRepository{DB: pg}
	sessionRepo := repository.SessionRepository{DB: pg}
	exportRepo := repository.DataExportRepository{DB: pg}
	fcmRepo := repository.FCMRepository{DB: pg}
	shopRepo := repository.ShopRepository{DB: pg}
	customerRepo := repository.CustomerRepository{DB: pg}
	productRepo := repository.ProductRepository{DB: pg}
	txRepo := repository.TransactionRepository{DB: pg}
	notificationRepo := repository.NotificationRepository{DB: pg}
	dashboardRepo := repository.DashboardRepository{DB: pg}

	// services
	sms := notify.NewLogSMSGateway(logger)
	authSvc := &service.AuthService{
		Config:    cfg,
		Users:     userRepo,
		Sessions:  sessionRepo,
		Customers: customerRepo,
		Exports:   exportRepo,
		OTP: otp.Store{
			Client:       rdb.Client,
			TTL:          cfg.OTPTTL,
			MaxPerMinute: cfg.OTPMaxPerMinute,
		},
		SMS:          sms,
		Logger:       logger,
		FirebaseAuth: firebaseAuth,
	}
	shopSvc := &service.ShopService{
		Shops:        shopRepo,
		Customers:    customerRepo,
		Transactions: txRepo,
		Dashboard:    dashboardRepo,
	}
	reminderSvc := &service.ReminderService{
		Customers:     customerRepo,
		Notifications: notificationRepo,
		Tokens:        fcmRepo,
		Dispatcher:    notify.NewDispatcher(fcm, sms, cfg.DefaultCountryCode, logger),
		Logger:        logger,
	}

	scheduler := service.ReminderScheduler{Jobs: reminderSvc, Interval: cfg.ReminderInterval, Logger: logger}

	handlers := server.Handlers{
		Health: handler.HealthHandler{Checks: map[string]ports.HealthChecker{
			"postgres": pg,
			"redis":    rdb,
		}},
		Auth:         handler.AuthHandler{Service: authSvc, EchoOTP: cfg.IsDevelopment()},
		FCM:          handler.FCMHandler{Repo: fcmRepo},
		Shops:        handler.ShopHandler{Service: shopSvc},
		Customers:    handler.CustomerHandler{Shops: shopSvc, Reminders: reminderSvc},
		Products:     handler.ProductHandler{Shops: shopSvc, Repo: productRepo},
		Transactions: handler.TransactionHandler{Shops: shopSvc},
		Me:           handler.MeHandler{Shops: shopSvc},
	}
	router := server.NewRouter(cfg, logger, rdb.Client, authSvc, handlers)

	if err := server.Start(ctx, cfg, router, logger, scheduler.Run); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firebaseOptions(cfg config.Config) []option.ClientOption {
	if cfg.FirebaseCredFile == "" {
		return nil
	}

	cred := cfg.FirebaseCredFile
	// Allow inline JSON or base64-encoded JSON in env to avoid writing a file.
	if strings.HasPrefix(strings.TrimSpace(cred), "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cred))}
	}
	if decoded, err := base64.StdEncoding.DecodeString(cred); err == nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
		return []option.ClientOption{option.WithCredentialsJSON(decoded)}
	}

	return []option.ClientOption{option.WithCredentialsFile(cred)}
}
