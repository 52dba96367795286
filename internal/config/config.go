package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "time"    // durations for lease and sweep settings

    "github.com/joho/godotenv" // optional .env file support
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database and broker settings are optional: an
// empty DBHost runs the ledger purely in memory and an empty RabbitURL
// disables booking events.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    JWTSecret    string // secret used to verify (and, for dev tokens, sign) JWTs
    AccessTTLMin int    // access token time-to-live in minutes for dev tokens

    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address; empty disables persistence
    DBPort string // database port number
    DBName string // database name

    RabbitURL     string // AMQP URL for booking events; empty disables publishing
    AuditConsumer bool   // run the booking audit consumer in-process
    AuditLogDir   string // directory the audit consumer writes booking.log into

    LeaseTTL         time.Duration // how long a hold lasts before the sweep reclaims it
    SweepInterval    time.Duration // how often lapsed holds are swept
    SubscriberBuffer int           // deltas a live viewer may lag behind before being cut off

    PricingSurge         float64 // extra price multiple at a full house
    PricingMaxMultiplier float64 // cap on the price multiple
    PricingStepCents     int64   // price rounding step in cents

    SeedDemo bool // provision a demo showing at startup when the ledger is empty
}

// PersistenceEnabled reports whether a MySQL database is configured.
func (c Config) PersistenceEnabled() bool { return c.DBHost != "" }

// Load reads configuration values from the environment, after loading a
// .env file when one is present.  Only JWT_SECRET is required; a missing
// value causes the program to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // a missing .env file is not an error
    return Config{
        Env:          envStr("APP_ENV", "dev"),
        Port:         envStr("APP_PORT", "6969"),
        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),

        DBUser: envStr("DB_USER", "root"),
        DBPass: os.Getenv("DB_PASS"),
        DBHost: os.Getenv("DB_HOST"),
        DBPort: envStr("DB_PORT", "3306"),
        DBName: envStr("DB_NAME", "seatsync"),

        RabbitURL:     rabbitURL(),
        AuditConsumer: envBool("AUDIT_CONSUMER", false),
        AuditLogDir:   envStr("AUDIT_LOG_DIR", "logs"),

        LeaseTTL:         envDur("LEASE_TTL", 120*time.Second),
        SweepInterval:    envDur("SWEEP_INTERVAL", 5*time.Second),
        SubscriberBuffer: envInt("SUBSCRIBER_BUFFER", 64),

        PricingSurge:         envFloat("PRICING_SURGE", 0.5),
        PricingMaxMultiplier: envFloat("PRICING_MAX_MULTIPLIER", 1.5),
        PricingStepCents:     int64(envInt("PRICING_STEP_CENTS", 1)),

        SeedDemo: envBool("SEED_DEMO", false),
    }
}

// rabbitURL accepts either RABBITMQ_URL or AMQP_URL.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
