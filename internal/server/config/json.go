package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophstore/internal/flagx"
	"github.com/dmitrijs2005/gophstore/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Keys
// missing from the file keep their current values.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	GRPCHealthAddr               string         `json:"grpc_health_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	Storage                      string         `json:"storage"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	LogBackend                   string         `json:"log_backend"`
	LogLevel                     string         `json:"log_level"`
	NATSURL                      string         `json:"nats_url"`
	NATSResetSubject             string         `json:"nats_reset_subject"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	RateLimitRPM                 int            `json:"rate_limit_rpm"`
	TestingDisableAuthUserID     int64          `json:"testing_disable_auth_user_id"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:                     c.HTTPAddr,
		GRPCHealthAddr:               c.GRPCHealthAddr,
		DatabaseDSN:                  c.DatabaseDSN,
		Storage:                      c.Storage,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		ResetTokenValidityDuration:   timex.Duration{Duration: c.ResetTokenValidityDuration},
		BcryptCost:                   c.BcryptCost,
		LogBackend:                   c.LogBackend,
		LogLevel:                     c.LogLevel,
		NATSURL:                      c.NATSURL,
		NATSResetSubject:             c.NATSResetSubject,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		RateLimitRPM:                 c.RateLimitRPM,
		TestingDisableAuthUserID:     c.TestingDisableAuthUserID,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCHealthAddr = j.GRPCHealthAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.Storage = j.Storage
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.ResetTokenValidityDuration = j.ResetTokenValidityDuration.Duration
	c.BcryptCost = j.BcryptCost
	c.LogBackend = j.LogBackend
	c.LogLevel = j.LogLevel
	c.NATSURL = j.NATSURL
	c.NATSResetSubject = j.NATSResetSubject
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.RateLimitRPM = j.RateLimitRPM
	c.TestingDisableAuthUserID = j.TestingDisableAuthUserID
}

// parseJson overlays values from the JSON file named by -c/-config, if any.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
