// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "time"

// Config is the root application configuration, loaded via
// github.com/USA-RedDragon/configulator from environment variables, a
// config file, and command line flags (in that precedence order).
type Config struct {
	LogLevel LogLevel `name:"log-level" description:"Minimum level of log lines to emit." default:"info"`

	Secret       string `name:"secret" description:"HMAC/encryption secret for signing opaque tokens and codes." default:"insecure-development-secret"`
	NetworkName  string `name:"network-name" description:"Display name of the server, used in e-mails and client responses." default:"Private Server"`
	PublicDomain string `name:"public-domain" description:"Base domain used to build absolute replay/avatar URLs." default:"localhost"`

	HTTP     HTTPConfig     `name:"http"`
	Database DatabaseConfig `name:"database"`
	Redis    RedisConfig    `name:"redis"`
	SMTP     SMTPConfig     `name:"smtp"`
	OAuth    OAuthConfig    `name:"oauth"`
	Security SecurityConfig `name:"security"`
	TOTP     TOTPConfig     `name:"totp"`
	Trust    TrustConfig    `name:"trust"`
	Hub      HubConfig      `name:"hub"`
	Replay   ReplayConfig   `name:"replay"`
	Metrics  MetricsConfig  `name:"metrics"`
	PProf    PProfConfig    `name:"pprof"`
}

type HTTPConfig struct {
	ListenAddr     string   `name:"listen-addr" default:"0.0.0.0"`
	Port           int      `name:"port" default:"8080"`
	CORSHosts      []string `name:"cors-hosts"`
	TrustedProxies []string `name:"trusted-proxies"`
	Debug          bool     `name:"debug" default:"false"`
}

// DatabaseConfig configures the gorm connection. Driver selects the
// gorm.io driver; Database is either a DSN-relevant database name
// (postgres/mysql) or a file path (sqlite); an empty Database with the
// sqlite driver opens an in-memory database, used by tests.
type DatabaseConfig struct {
	Driver          DatabaseDriver `name:"driver" default:"sqlite"`
	Host            string         `name:"host" default:"localhost"`
	Port            int            `name:"port" default:"5432"`
	Username        string         `name:"username" default:"postgres"`
	Password        string         `name:"password" default:"password"`
	Database        string         `name:"database" default:"server"`
	ExtraParameters []string       `name:"extra-parameters"`
}

type RedisConfig struct {
	Enabled  bool   `name:"enabled" default:"false"`
	Host     string `name:"host" default:"localhost"`
	Port     int    `name:"port" default:"6379"`
	Password string `name:"password"`
	DB       int    `name:"db" default:"0"`
}

type SMTPConfig struct {
	Enabled        bool           `name:"enabled" default:"false"`
	Host           string         `name:"host"`
	Port           int            `name:"port" default:"587"`
	AuthMethod     SMTPAuthMethod `name:"auth-method" default:"plain"`
	Username       string         `name:"username"`
	Password       string         `name:"password"`
	From           string         `name:"from"`
	ImplicitTLS    bool           `name:"implicit-tls" default:"false"`
	RetryAttempts  int            `name:"retry-attempts" default:"3"`
	RetryBaseDelay time.Duration  `name:"retry-base-delay" default:"60s"`
}

type OAuthConfig struct {
	// ClientSecrets maps an OAuth client id to its shared secret, for the
	// game client and any first-party web client.
	ClientSecrets         map[string]string `name:"client-secrets"`
	AccessTokenLifetime   time.Duration     `name:"access-token-lifetime" default:"24h"`
	RefreshTokenLifetime  time.Duration     `name:"refresh-token-lifetime" default:"720h"`
	AuthorizationCodeTTL  time.Duration     `name:"authorization-code-ttl" default:"5m"`
	AllowMultipleDevices  bool              `name:"allow-multiple-devices" default:"false"`
	ClientCredentialsBot  uint              `name:"client-credentials-bot-user-id" default:"1"`
}

// SecurityConfig configures registration-time password hardening.
type SecurityConfig struct {
	// HIBPAPIKey enables the Have I Been Pwned breach check on
	// registration when set; left blank, the check is skipped.
	HIBPAPIKey string `name:"hibp-api-key"`
}

type TOTPConfig struct {
	Enabled          bool          `name:"enabled" default:"true"`
	Issuer           string        `name:"issuer" default:"Private Server"`
	DraftTTL         time.Duration `name:"draft-ttl" default:"5m"`
	DraftMaxFailures int           `name:"draft-max-failures" default:"3"`
	BackupCodeCount  int           `name:"backup-code-count" default:"10"`
	ReplayWindowSecs int           `name:"replay-window-seconds" default:"30"`
}

type TrustConfig struct {
	DeviceTTL          time.Duration `name:"device-ttl" default:"720h"`
	EmailEnabled       bool          `name:"email-verification-enabled" default:"true"`
	EmailCodeTTL       time.Duration `name:"email-code-ttl" default:"10m"`
	EmailResendCooldown time.Duration `name:"email-resend-cooldown" default:"60s"`
}

type HubConfig struct {
	PingInterval      time.Duration `name:"ping-interval" default:"15s"`
	LoadTimeout       time.Duration `name:"load-timeout" default:"30s"`
	ScoreReconcileMax time.Duration `name:"score-reconcile-max" default:"30s"`
}

type ReplayConfig struct {
	Directory string `name:"directory" default:"./data/replays"`
}

type MetricsConfig struct {
	Enabled      bool   `name:"enabled" default:"false"`
	Bind         string `name:"bind" default:"0.0.0.0"`
	Port         int    `name:"port" default:"9090"`
	OTLPEndpoint string `name:"otlp-endpoint"`
}

type PProfConfig struct {
	Enabled        bool     `name:"enabled" default:"false"`
	Bind           string   `name:"bind" default:"127.0.0.1"`
	Port           int      `name:"port" default:"6060"`
	TrustedProxies []string `name:"trusted-proxies"`
}
