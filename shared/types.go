package shared

import "time"

type ServerConfig struct {
	Rolodex  RolodexConfig  `mapstructure:"rolodex" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Google   GoogleConfig   `mapstructure:"google"`
	S3       S3Config       `mapstructure:"s3"`
	Profile  ProfileConfig  `mapstructure:"profile"`
}

type RolodexConfig struct {
	PrivateKeyPem  string         `mapstructure:"privateKeyPem" validate:"required"`
	PublicAPIKey   string         `mapstructure:"publicApiKey" validate:"required"`
	AppURL         string         `mapstructure:"appUrl" validate:"required,url"`
	AccessTokenTTL time.Duration  `mapstructure:"accessTokenTTL"`
	SessionTTL     time.Duration  `mapstructure:"sessionTTL"`
	Listener       ListenerConfig `mapstructure:"listener" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN        string `mapstructure:"dsn"`
	PassPhrase string `mapstructure:"passPhrase"`
	Dir        string `mapstructure:"dir"`
}

type StorageConfig struct {
	Provider string `mapstructure:"provider" validate:"required,oneof=gcs s3 disk"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	// PublicBaseURL overrides the URL images are served from, e.g. a CDN in front of the bucket.
	PublicBaseURL string `mapstructure:"publicBaseUrl" validate:"omitempty,url"`
	Dir           string `mapstructure:"dir"`
}

type GoogleConfig struct {
	ApplicationCredentials string `mapstructure:"applicationCredentials"`
}

type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"accessKey"`
	SecretKey    string `mapstructure:"secretKey"`
	UsePathStyle bool   `mapstructure:"usePathStyle"`
}

type ProfileConfig struct {
	// EnrichmentURL, when set, is queried instead of scraping the profile page.
	EnrichmentURL string        `mapstructure:"enrichmentUrl" validate:"omitempty,url"`
	UserAgent     string        `mapstructure:"userAgent"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ClientConfig struct {
	API  APIConfig  `mapstructure:"api" validate:"required"`
	Auth AuthConfig `mapstructure:"auth"`
}

type APIConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
	Key string `mapstructure:"key" validate:"required"`
}

type AuthConfig struct {
	AutoRefreshToken   bool   `mapstructure:"autoRefreshToken"`
	PersistSession     bool   `mapstructure:"persistSession"`
	DetectSessionInURL bool   `mapstructure:"detectSessionInUrl"`
	FlowType           string `mapstructure:"flowType" validate:"omitempty,oneof=pkce implicit"`
	SessionFile        string `mapstructure:"sessionFile"`
}
