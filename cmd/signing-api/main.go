package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Caring-data/documenso-sub000/api/swagger"
	"github.com/Caring-data/documenso-sub000/internal/handler"
	"github.com/Caring-data/documenso-sub000/internal/pdf"
	"github.com/Caring-data/documenso-sub000/internal/repository"
	"github.com/Caring-data/documenso-sub000/internal/service"
	"github.com/Caring-data/documenso-sub000/pkg/cache"
	"github.com/Caring-data/documenso-sub000/pkg/config"
	"github.com/Caring-data/documenso-sub000/pkg/database"
	"github.com/Caring-data/documenso-sub000/pkg/jobs"
	"github.com/Caring-data/documenso-sub000/pkg/logger"
	"github.com/Caring-data/documenso-sub000/pkg/mailer"
	corsmiddleware "github.com/Caring-data/documenso-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/Caring-data/documenso-sub000/pkg/middleware/requestid"
	"github.com/Caring-data/documenso-sub000/pkg/storage"
)

// @title Document Signing API
// @version 1.0.0
// @description PDF field insertion, sealing and signing-completion service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, seal deduplication degrades to the row lock", "error", err)
		redisClient = nil
	}

	var store storage.Store
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
		})
		if err != nil {
			logr.Sugar().Fatalw("s3 storage init failed", "error", err)
		}
	case "local":
		store, err = storage.NewLocalStorage(cfg.Storage.LocalDir)
		if err != nil {
			logr.Sugar().Fatalw("local storage init failed", "error", err)
		}
	default:
		logr.Sugar().Infow("no object storage configured, payloads stay inline")
	}

	fontPack := pdf.NewFontPack(cfg.Fonts.DefaultFont, cfg.Fonts.SignatureFont)
	if err := fontPack.LoadDir(cfg.Fonts.Dir); err != nil {
		logr.Sugar().Fatalw("font load failed", "dir", cfg.Fonts.Dir, "error", err)
	}

	signerKey, signerCert, err := pdf.LoadSigner(cfg.Signing.CertificateFile, cfg.Signing.KeyFile)
	if err != nil {
		logr.Sugar().Fatalw("signing identity load failed", "error", err)
	}
	sealer := pdf.NewSealer(fontPack, pdf.SignerInfo{
		Signer:      signerKey,
		Certificate: signerCert,
		Name:        cfg.Certificate.SiteName,
		Reason:      cfg.Signing.Reason,
		Location:    cfg.Signing.Location,
		ContactInfo: cfg.Signing.ContactInfo,
	})

	documents := repository.NewDocumentRepository(db)
	recipients := repository.NewRecipientRepository(db)
	fields := repository.NewFieldRepository(db)
	signatures := repository.NewSignatureRepository(db)
	documentData := repository.NewDocumentDataRepository(db)
	audit := repository.NewAuditRepository(db)

	dispatcher := jobs.NewDispatcher("signing", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	var mail mailer.Mailer
	if cfg.Mail.Host != "" {
		mail = mailer.NewSMTP(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	} else {
		mail = mailer.NewLogMailer(logr)
	}

	metrics := service.NewMetricsService()
	tokens := service.NewTokenService(cfg.Tokens)
	payloads := service.NewPayloadService(documentData, store, logr)
	notifications := service.NewNotificationService(dispatcher, mail, cfg.PublicURL, logr)
	webhooks := service.NewWebhookService(cfg.Webhooks, logr)
	forwarding := service.NewForwardingService(cfg.Forwarding, logr)
	signer := storage.NewSignedURLSigner(cfg.Tokens.DownloadSecret, cfg.Tokens.DownloadTTL)
	sealLock := service.NewRedisSealLock(redisClient, 0)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	documentCache := service.NewDocumentCache(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	documentService := service.NewDocumentService(
		db, documents, recipients, fields, signatures, audit,
		payloads, tokens, notifications, signer, documentCache,
		cfg.PublicURL, cfg.Certificate.SiteName, logr)

	completionService := service.NewCompletionService(
		db, documents, recipients, fields, signatures, audit,
		notifications, webhooks, dispatcher, sealLock, documentCache, logr)

	sealService := service.NewSealService(
		db, documents, recipients, fields, signatures, audit,
		payloads, sealer, pdf.NewGofpdfRenderer(), documentService, cfg.Certificate,
		notifications, webhooks, forwarding, signer, documentCache, cfg.PublicURL, logr)

	notifications.Register(dispatcher)
	completionService.Register(dispatcher)
	service.NewSealWorker(sealService, metrics, logr).Register(dispatcher)

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetQueueDepth(dispatcher.Depth())
			}
		}
	}()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Routers{
		Documents:      handler.NewDocumentHandler(documentService, tokens, dispatcher),
		Signing:        handler.NewSigningHandler(completionService),
		Metrics:        handler.NewMetricsHandler(metrics),
		MetricsService: metrics,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
