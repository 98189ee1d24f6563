package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"commission-app/config"
	"commission-app/database"
	adminapi "commission-app/internal/api/admin"
	billingapi "commission-app/internal/api/billing"
	cardsapi "commission-app/internal/api/cards"
	draftsapi "commission-app/internal/api/drafts"
	stripewebhooks "commission-app/internal/api/stripewebhook"
	usersapi "commission-app/internal/api/users"
	walletapi "commission-app/internal/api/wallet"
	routes "commission-app/internal/app/http"
	"commission-app/internal/gateway"
	"commission-app/internal/infra/mockpay"
	"commission-app/internal/infra/stripe"
	"commission-app/internal/notify"
	"commission-app/internal/services/checkout"
	"commission-app/internal/services/drafting"
	"commission-app/internal/services/payments"
	"commission-app/internal/services/wallet"
	"commission-app/internal/store"
	"commission-app/internal/store/gormstore"
	"commission-app/internal/store/memstore"
	"commission-app/internal/txn"
)

func main() {
	config.LoadEnv()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.LogLevel()})))
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	st := mustStore()
	providers := mustProviders()

	pub, closePub := publisher()
	defer closePub()
	notifier := notify.NewNotifier(pub)

	draftSvc := drafting.NewService(st, drafting.WithNotifier(notifier))
	workflow := drafting.NewWorkflow(st, drafting.WithNotifier(notifier))
	assigner := drafting.NewAssigner(st, drafting.WithNotifier(notifier))
	checkoutSvc := checkout.NewService(st,
		checkout.WithNotifier(notifier),
		checkout.WithShipments(notify.NewShipmentRegistrar(pub)),
		checkout.WithShippingCost(config.SHIPPING_COST_CENTS),
		checkout.WithCurrency(config.CURRENCY),
	)
	paymentSvc := payments.NewService(st, providers,
		payments.WithNotifier(notifier),
		payments.WithReturnURL(config.PAYMENT_RETURN_URL),
	)
	walletSvc := wallet.NewService(st)

	h := routes.Handlers{
		Drafts: draftsapi.NewHandler(draftSvc, workflow, assigner, checkoutSvc, walletSvc),
		Payments: billingapi.NewHandler(paymentSvc, billingapi.WebhookConfig{
			Secret:        config.PAYMENT_WEBHOOK_SECRET,
			AllowUnsigned: config.AllowUnsignedWebhooks(),
		}),
		Wallet: walletapi.NewHandler(walletSvc),
		Users:  usersapi.NewHandler(st.Users(), walletSvc, assigner),
		Cards:  cardsapi.NewHandler(st.Cards()),
		Admin:  adminapi.NewHandler(assigner, draftSvc, walletSvc, st.Cards()),
	}
	if config.PAYMENT_PROVIDER == stripe.Name {
		if config.STRIPE_WEBHOOK_SECRET == "" {
			slog.Warn("STRIPE_WEBHOOK_SECRET not set; stripe events will be rejected")
		}
		h.Stripe = stripewebhooks.NewHandler(paymentSvc, config.STRIPE_WEBHOOK_SECRET)
	}

	r := gin.Default()

	// CORS must run before any route handler.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, h, config.JWT_SECRET)

	slog.Info("listening", "port", config.PORT, "env", config.APP_ENV, "provider", providers.Default())
	if err := r.Run(":" + config.PORT); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func mustStore() store.Store {
	if config.DB_URL == "" {
		slog.Warn("DB_URL not set; using the in-memory store, data is lost on restart")
		return memstore.New()
	}
	if !config.DB_SKIP_MIGRATIONS {
		if err := database.Migrate(config.DB_URL); err != nil {
			fatal("migrate database", err)
		}
	}
	db, err := database.Open(config.DB_URL)
	if err != nil {
		fatal("open database", err)
	}
	return gormstore.New(db, txn.Runner{})
}

func mustProviders() *gateway.Registry {
	var prov gateway.Provider
	switch config.PAYMENT_PROVIDER {
	case stripe.Name:
		p, err := stripe.New(config.STRIPE_SECRET_KEY)
		if err != nil {
			fatal("init stripe", err)
		}
		prov = p
	default:
		prov = mockpay.New(mockpay.Options{})
	}
	reg, err := gateway.NewRegistry(prov.Name(), prov)
	if err != nil {
		fatal("payment providers", err)
	}
	return reg
}

// publisher returns the event sink for notifications and shipments plus its
// close function.
func publisher() (notify.Publisher, func()) {
	switch config.NOTIFY_BACKEND {
	case "kafka":
		p := notify.NewKafkaPublisher(config.KAFKA_BROKERS)
		return p, closer("kafka", p)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.REDIS_ADDR,
			Password: config.REDIS_PASSWORD,
			DB:       config.REDIS_DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable; notifications will fail until it recovers", "addr", config.REDIS_ADDR, "err", err)
		}
		p := notify.NewRedisPublisher(client)
		return p, closer("redis", p)
	default:
		return notify.LogPublisher{}, func() {}
	}
}

func closer(name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Warn("closing publisher", "backend", name, "err", err)
		}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
