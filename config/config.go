package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goflare.io/ember"
	emberConfig "goflare.io/ember/config"
	"goflare.io/ignite"

	"goflare.io/loyalty/coupon"
	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/driver"
	"goflare.io/loyalty/savings"
)

const (
	ServerStartPort = ":8080"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	NATS     NATSConfig `mapstructure:"nats"`
	Stripe   StripeConfig
	Savings  SavingsConfig
	Cache    CacheConfig
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	Location string `mapstructure:"location"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL       string `mapstructure:"url"`
	Subject   string `mapstructure:"subject"`
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type SavingsConfig struct {
	MonthlyGoal            float64 `mapstructure:"monthly_goal"`
	AssumedAveragePurchase float64 `mapstructure:"assumed_average_purchase"`
	FloorValue             float64 `mapstructure:"floor_value"`
}

type CacheConfig struct {
	CouponTTL time.Duration `mapstructure:"coupon_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", ServerStartPort)
	v.SetDefault("app.location", "UTC")
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", nats.DefaultURL)
	v.SetDefault("nats.subject", "identity.phone_changed")
	v.SetDefault("nats.workers", 8)
	v.SetDefault("nats.queue_size", 256)
	v.SetDefault("savings.monthly_goal", savings.DefaultMonthlyGoal)
	v.SetDefault("savings.assumed_average_purchase", savings.DefaultAveragePurchase)
	v.SetDefault("savings.floor_value", savings.DefaultFloor)
	v.SetDefault("cache.coupon_ttl", 10*time.Minute)
}

// ProvideApplicationConfig reads config.yaml (or $LOYALTY_CONFIG) and lets
// LOYALTY_* environment variables override any key, e.g. LOYALTY_POSTGRES_URL.
// A missing file is fine when the environment carries everything.
func ProvideApplicationConfig() (*Config, error) {

	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	path := os.Getenv("LOYALTY_CONFIG")
	if path == "" {
		path = "./config.yaml"
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LOYALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Store.Driver != StoreDriverPostgres && config.Store.Driver != StoreDriverMemory {
		return nil, fmt.Errorf("unsupported store driver %q", config.Store.Driver)
	}

	return &config, nil
}

// ProvideLocation is the calendar savings months and streak days are counted in.
func ProvideLocation(appConfig *Config) (*time.Location, error) {
	loc, err := time.LoadLocation(appConfig.App.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", appConfig.App.Location, err)
	}
	return loc, nil
}

// ProvideDocumentStore opens the configured backend. The postgres store is
// migrated before use.
func ProvideDocumentStore(appConfig *Config, logger *zap.Logger) (docstore.Store, func(), error) {

	if appConfig.Store.Driver == StoreDriverMemory {
		logger.Warn("using in-memory document store")
		return docstore.NewMemory(), func() {}, nil
	}

	conn, err := driver.ConnectSQL(appConfig.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}

	store := docstore.NewPostgres(conn.Pool, driver.NewTransactionManager(conn.Pool, logger), logger)
	if err = store.Migrate(context.Background()); err != nil {
		conn.Pool.Close()
		return nil, nil, err
	}

	return store, conn.Pool.Close, nil
}

func ProvideEmber(appConfig *Config) (*ember.MultiCache, error) {

	conn, err := driver.ConnectRedis(appConfig.Redis.Addr, appConfig.Redis.Password, appConfig.Redis.DB)
	if err != nil {
		return nil, err
	}

	config := emberConfig.NewConfig()
	cache, err := ember.NewMultiCache(context.Background(), &config, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return cache, nil
}

func ProvideIgnite() ignite.Manager {
	return ignite.NewManager()
}

// ProvideCouponRepository stacks the ember cache over the document store
// repository.
func ProvideCouponRepository(store docstore.Store, appConfig *Config, cache *ember.MultiCache, poolManager ignite.Manager, logger *zap.Logger) (coupon.Repository, error) {

	repo, err := coupon.NewRepository(store, logger, poolManager)
	if err != nil {
		return nil, err
	}

	return coupon.NewCachedRepository(repo, cache, appConfig.Cache.CouponTTL, logger), nil
}

func ProvideCouponLookup(repo coupon.Repository) savings.CouponLookup {
	return repo
}

func ProvideSavingsOptions(appConfig *Config, loc *time.Location) savings.Options {
	return savings.Options{
		MonthlyGoal:     appConfig.Savings.MonthlyGoal,
		AveragePurchase: appConfig.Savings.AssumedAveragePurchase,
		Floor:           appConfig.Savings.FloorValue,
		Location:        loc,
	}
}

// ProvideNATS connects to the event bus. An empty url disables the
// phone-change consumer.
func ProvideNATS(appConfig *Config, logger *zap.Logger) (*nats.Conn, func(), error) {

	if appConfig.NATS.URL == "" {
		logger.Warn("nats url not configured, phone change events disabled")
		return nil, func() {}, nil
	}

	nc, err := nats.Connect(appConfig.NATS.URL, nats.Name("loyalty"))
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to nats: %w", err)
	}

	return nc, func() { _ = nc.Drain() }, nil
}

func NewLogger(appConfig *Config) (*zap.Logger, error) {

	if appConfig.App.Env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
