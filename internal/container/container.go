package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/the-bazaar/bazaar-backend/internal/api"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/aws"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/database"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/mfa"
	"github.com/the-bazaar/bazaar-backend/internal/middleware"
	"github.com/the-bazaar/bazaar-backend/internal/notifications"
	"github.com/the-bazaar/bazaar-backend/internal/orders"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
	"github.com/the-bazaar/bazaar-backend/internal/staff"
)

type Container struct {
	Config        *config.Config
	Database      *database.Database
	Queue         *queue.TaskQueue
	RedisClient   *redis.Client
	Identity      identity.Provider
	Authenticator *auth.Authenticator
	Staff         *staff.Service
	MFA           *mfa.Service
	Orders        *orders.Service
	Audit         *audit.Recorder
	AuditExporter *audit.Exporter
	EmailService  *aws.SESService
	S3Service     *aws.S3Service
	Server        *api.Server
	Worker        *queue.Worker
}

// NewIdentityProvider returns the GoTrue client, wrapped in a local JWT
// verifier when IDENTITY_VERIFY_MODE=local.
func NewIdentityProvider(cfg config.IdentityConfig) (identity.Provider, error) {
	client := identity.NewGoTrueClient(cfg, &http.Client{Timeout: config.IdentityRequestTimeout})
	switch cfg.VerifyMode {
	case "", "remote":
		return client, nil
	case "local":
		return identity.NewLocalVerifier([]byte(cfg.JWTSecret), client)
	default:
		return nil, fmt.Errorf("unknown identity verify mode %q", cfg.VerifyMode)
	}
}

func New(cfg config.Config) (*Container, error) {
	ctx := context.Background()
	c := &Container{Config: &cfg}

	store, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}
	c.Database = store
	logging.Info("Connected to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port)

	taskQueue, err := queue.NewQueue(&cfg.Redis)
	if err != nil {
		c.Cleanup()
		return nil, err
	}
	c.Queue = taskQueue

	// The asynq client keeps its own pool; this one holds MFA challenges.
	c.RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	provider, err := NewIdentityProvider(cfg.Identity)
	if err != nil {
		c.Cleanup()
		return nil, err
	}
	c.Identity = provider

	queries := store.Queries()
	c.Authenticator = auth.NewAuthenticator(provider, queries)

	templates, err := notifications.LoadTemplates()
	if err != nil {
		c.Cleanup()
		return nil, err
	}
	notifier := notifications.NewDispatcher(taskQueue, templates)

	c.MFA = mfa.NewService(provider, mfa.NewChallengeStore(c.RedisClient), queries, notifier)
	c.Staff = staff.NewService(provider, queries, func(ctx context.Context, fn func(staff.Store) error) error {
		return store.InTx(ctx, func(q *db.Queries) error { return fn(q) })
	}, notifier).WithLoginURL(cfg.Server.AdminLoginURL)
	c.Orders = orders.NewService(queries)
	c.Audit = audit.NewRecorder(queries)

	c.S3Service, err = aws.NewS3Service(ctx, cfg.AWS)
	if err != nil {
		c.Cleanup()
		return nil, err
	}
	// localstack only; production buckets are provisioned outside the app
	if cfg.AWS.EndpointURL != "" {
		if err := c.S3Service.EnsureBucket(ctx); err != nil {
			logging.Warn("S3 bucket creation failed", "bucket", cfg.AWS.Bucket, "error", err)
		}
	}
	c.AuditExporter = audit.NewExporter(c.Audit, c.S3Service)

	c.EmailService, err = aws.NewSESService(ctx, cfg.AWS)
	if err != nil {
		c.Cleanup()
		return nil, err
	}

	c.Worker = queue.NewWorker(&cfg.Redis, c.EmailService, c.Orders)

	trusted, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	c.Server = api.NewServer(api.Deps{
		Authenticator:  c.Authenticator,
		Staff:          c.Staff,
		MFA:            c.MFA,
		Orders:         c.Orders,
		AuditLog:       c.Audit,
		AuditExporter:  c.AuditExporter,
		Queue:          taskQueue,
		Checks:         c.readinessChecks(),
		PaystackSecret: cfg.Paystack.SecretKey,
		CORS:           &cfg.CORS,
		TrustedProxies: trusted,
	})

	return c, nil
}

func (c *Container) readinessChecks() map[string]api.Check {
	return map[string]api.Check{
		"database": c.Database.Ping,
		"redis": func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		},
		"queue": func(context.Context) error {
			return c.Queue.Ping()
		},
	}
}

func (c *Container) Cleanup() {
	if c.Queue != nil {
		c.Queue.Close()
		logging.Info("Queue client closed")
	}
	if c.Worker != nil {
		c.Worker.Close()
		logging.Info("Worker closed")
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
		logging.Info("Redis client closed")
	}
	if c.Database != nil {
		c.Database.Close()
		logging.Info("Database connection closed")
	}
}
