package config

type Config struct {
	Debug    bool     `mapstructure:"debug"`
	Server   Server   `mapstructure:"server"`
	Session  Session  `mapstructure:"session"`
	Entities Entities `mapstructure:"entities"`
	Media    Media    `mapstructure:"media"`
}

type Server struct {
	Address string       `mapstructure:"address" validate:"required,hostname|ip"`
	Port    int          `mapstructure:"port" validate:"required,min=1,max=65535"`
	Limits  ServerLimits `mapstructure:"limits"`
}

type ServerLimits struct {
	MaxPayloadSize  uint `mapstructure:"max_payload_size" validate:"required"`
	MaxMultipartMem uint `mapstructure:"max_multipart_mem" validate:"required"`
	MaxFileSize     uint `mapstructure:"max_file_size" validate:"required"`
}

type Session struct {
	CookieName string `mapstructure:"cookie_name" validate:"required"`
	TTLMinutes int    `mapstructure:"ttl_minutes" validate:"required,min=1"`
}

type Entities struct {
	Strategy string             `mapstructure:"strategy" validate:"required,oneof=memory sql d1"`
	SQL      *SQLEntityStrategy `mapstructure:"sql" validate:"required_if=Strategy sql"`
	D1       *D1EntityStrategy  `mapstructure:"d1" validate:"required_if=Strategy d1"`
}

type SQLEntityStrategy struct {
	Driver      string  `mapstructure:"driver" validate:"required,oneof=mysql postgres"`
	DSN         string  `mapstructure:"dsn" validate:"required"`
	TablePrefix *string `mapstructure:"table_prefix"`
}

type D1EntityStrategy struct {
	AccountID   string  `mapstructure:"account_id" validate:"required"`
	DatabaseID  string  `mapstructure:"database_id" validate:"required"`
	APIToken    string  `mapstructure:"api_token" validate:"required"`
	Endpoint    string  `mapstructure:"endpoint" validate:"omitempty,url"`
	TablePrefix *string `mapstructure:"table_prefix"`
}

type Media struct {
	// AllowedTypes are media type patterns such as "image/png" or "image/*".
	AllowedTypes     []string   `mapstructure:"allowed_types" validate:"required,min=1,dive,required"`
	StagingPath      string     `mapstructure:"staging_path" validate:"required,abspath"`
	OpTimeoutSeconds int        `mapstructure:"op_timeout_seconds" validate:"required,min=1"`
	Store            MediaStore `mapstructure:"store"`
}

type MediaStore struct {
	Strategy   string                   `mapstructure:"strategy" validate:"required,oneof=filesystem s3 noop"`
	Filesystem *FilesystemMediaStrategy `mapstructure:"filesystem" validate:"required_if=Strategy filesystem"`
	S3         *S3MediaStrategy         `mapstructure:"s3" validate:"required_if=Strategy s3"`
}

type FilesystemMediaStrategy struct {
	Path string `mapstructure:"path" validate:"required,abspath"`
}

type S3MediaStrategy struct {
	AccessKeyId string `mapstructure:"access_key_id" validate:"required"`
	SecretKeyId string `mapstructure:"secret_key_id" validate:"required"`
	Region      string `mapstructure:"region" validate:"required"`
	Bucket      string `mapstructure:"bucket" validate:"required"`
	Endpoint    string `mapstructure:"endpoint" validate:"omitempty"`
	Prefix      string `mapstructure:"prefix"`
}
