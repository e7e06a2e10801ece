package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"showup/internal/domain/constants"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultSweepInterval      = 5 * time.Minute
	defaultSweepBatch         = 50
	defaultLeaseTimeout       = 10 * time.Minute
	defaultBcryptCost         = 12
	defaultMaxAttempts        = 5
	defaultCurrency           = "usd"
	defaultReceiptTimeout     = 2 * time.Minute

	// Polygon mainnet for production, Polygon Amoy everywhere else.
	defaultProductionChainID = 137
	defaultTestnetChainID    = 80002
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Database struct {
		// AutoMigrate creates missing tables and indexes at startup.
		AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
	} `json:"database" yaml:"database"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	App *AppConfig `json:"app" yaml:"app"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	// TestRoutes exposes the ops endpoints (metrics, wallet info)
	TestRoutes *TestRoutesConfig `json:"testRoutes" yaml:"testRoutes"`

	// Payment configures the hosted checkout provider and webhook verification
	Payment *PaymentConfig `json:"payment" yaml:"payment"`

	// Escrow configures the on-chain mirror of settled challenges
	Escrow *EscrowConfig `json:"escrow" yaml:"escrow"`

	Settlement *SettlementConfig `json:"settlement" yaml:"settlement"`

	// PubSub carries settlement reconciliation events to the worker
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// Firebase configuration for push notifications
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// QRCode configuration for guarantor invite codes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	Discovery *DiscoveryConfig `json:"discovery" yaml:"discovery"`
}

// AppConfig holds the public URL of the web client.
type AppConfig struct {
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost int `json:"bcryptCost" yaml:"bcryptCost"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength        int  `json:"minLength" yaml:"minLength"`
	RequireUppercase bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers" yaml:"requireNumbers"`
	MaxLength        int  `json:"maxLength" yaml:"maxLength"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// TestRoutesConfig defines configuration for testing endpoints
type TestRoutesConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// PaymentConfig defines the payment provider settings
type PaymentConfig struct {
	SecretKey     string `json:"secretKey" yaml:"secretKey"`
	WebhookSecret string `json:"webhookSecret" yaml:"webhookSecret"`

	// InsecureWebhooks accepts unsigned webhook deliveries when no secret is set.
	// Never enable outside local development.
	InsecureWebhooks bool `json:"insecureWebhooks" yaml:"insecureWebhooks"`

	Currency string `json:"currency" yaml:"currency"`

	// TestPayments enables the payment simulation endpoint in production
	TestPayments bool `json:"testPayments" yaml:"testPayments"`
}

// EscrowConfig defines the escrow contract client settings
type EscrowConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	ChainID         int64         `json:"chainId" yaml:"chainId"`
	RPCURL          string        `json:"rpcUrl" yaml:"rpcUrl"`
	ContractAddress string        `json:"contractAddress" yaml:"contractAddress"`
	USDCAddress     string        `json:"usdcAddress" yaml:"usdcAddress"`
	PrivateKey      string        `json:"privateKey" yaml:"privateKey"`
	ReceiptTimeout  time.Duration `json:"receiptTimeout" yaml:"receiptTimeout"`
	MetadataBaseURI string        `json:"metadataBaseUri" yaml:"metadataBaseUri"`

	// Simulate returns successful results without touching the chain
	Simulate bool `json:"simulate" yaml:"simulate"`
}

// SettlementConfig defines reconciliation limits
type SettlementConfig struct {
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`
	// SweepInterval is how often the worker requeues stuck settlements and purges expired sessions.
	SweepInterval time.Duration `json:"sweepInterval" yaml:"sweepInterval"`
	SweepBatch    int           `json:"sweepBatch" yaml:"sweepBatch"`
	// LeaseTimeout bounds one escrow attempt. A settlement left processing for
	// longer is treated as abandoned and picked up again. Keep it above escrow.receiptTimeout.
	LeaseTimeout time.Duration `json:"leaseTimeout" yaml:"leaseTimeout"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// VerifyPushAuth requires a Google-signed OIDC token on worker push requests
	VerifyPushAuth bool `json:"verifyPushAuth" yaml:"verifyPushAuth"`

	// PushAudience is the expected audience of the push OIDC token
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`
}

// FirebaseConfig defines Firebase configuration for push notifications
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
	BaseURL              string `json:"baseUrl" yaml:"baseUrl"`
}

// DiscoveryConfig selects the assistant response strategy
type DiscoveryConfig struct {
	Strategy string `json:"strategy" yaml:"strategy"`
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Env.Env == constants.EnvProduction
}

// TestPaymentsAllowed reports whether payment simulation may run.
func (c *Config) TestPaymentsAllowed() bool {
	if !c.IsProduction() {
		return true
	}

	return c.Payment != nil && c.Payment.TestPayments
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate

			break
		}
	}

	if configFile == "" {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// ENV_VAR_NAME is aligned with existing YAML keys, e.g. PAYMENT_WEBHOOKSECRET -> payment.webhookSecret
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.Postgres != nil {
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, ...
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if cfg.App == nil {
		cfg.App = &AppConfig{}
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = defaultBcryptCost
	}

	if cfg.PasswordStrength == nil {
		cfg.PasswordStrength = DefaultPasswordStrength()
	}

	if cfg.Payment == nil {
		cfg.Payment = &PaymentConfig{}
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = defaultCurrency
	}

	if cfg.Escrow == nil {
		cfg.Escrow = &EscrowConfig{}
	}
	if cfg.Escrow.ChainID == 0 {
		cfg.Escrow.ChainID = defaultTestnetChainID
		if cfg.IsProduction() {
			cfg.Escrow.ChainID = defaultProductionChainID
		}
	}
	if cfg.Escrow.ReceiptTimeout == 0 {
		cfg.Escrow.ReceiptTimeout = defaultReceiptTimeout
	}

	if cfg.Settlement == nil {
		cfg.Settlement = &SettlementConfig{}
	}
	if cfg.Settlement.MaxAttempts <= 0 {
		cfg.Settlement.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Settlement.SweepInterval <= 0 {
		cfg.Settlement.SweepInterval = defaultSweepInterval
	}
	if cfg.Settlement.SweepBatch <= 0 {
		cfg.Settlement.SweepBatch = defaultSweepBatch
	}
	if cfg.Settlement.LeaseTimeout <= 0 {
		cfg.Settlement.LeaseTimeout = defaultLeaseTimeout
	}

	if cfg.Discovery == nil || cfg.Discovery.Strategy == "" {
		cfg.Discovery = &DiscoveryConfig{Strategy: constants.DiscoveryStrategyKeyword}
	}
}

// DefaultPasswordStrength returns the registration password policy.
func DefaultPasswordStrength() *PasswordStrengthConfig {
	return &PasswordStrengthConfig{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
		MaxLength:        72, // bcrypt ignores anything beyond 72 bytes
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
