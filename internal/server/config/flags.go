package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
//	-a string          HTTP bind address (e.g. ":8080")
//	-grpc string       gRPC health bind address
//	-d string          PostgreSQL DSN
//	-storage string    "postgres" or "memory"
//	-s string          JWT HMAC secret key
//	-t int             access token validity, minutes
//	-r int             refresh token validity, minutes
//	-rt int            reset token validity, minutes
//	-bcrypt-cost int   bcrypt work factor
//	-log-backend       "slog" or "zap"
//	-log-level         debug, info, warn, error
//	-nats string       NATS server URL; empty disables publishing
//	-u, -p, -b, -g, -e S3 user, password, bucket, region, endpoint
//	-rate-limit int    login/reset requests per client per minute, 0 disables
//
// Only recognized flags are picked out of os.Args (flagx.FilterArgs) so the
// -c/-config and -env-file flags of the other layers do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-d", "-storage", "-s", "-t", "-r", "-rt", "-bcrypt-cost",
		"-log-backend", "-log-level", "-nats", "-u", "-p", "-b", "-g", "-e", "-rate-limit",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCHealthAddr, "grpc", config.GRPCHealthAddr, "gRPC health address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Storage, "storage", config.Storage, "storage backend (postgres|memory)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	resetTokenValidity := fs.Int("rt", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")

	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.NATSURL, "nats", config.NATSURL, "NATS URL")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.IntVar(&config.RateLimitRPM, "rate-limit", config.RateLimitRPM, "rate limit, requests per minute")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Durations are only replaced when given, so sub-minute values from
	// earlier layers survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
		case "rt":
			config.ResetTokenValidityDuration = time.Duration(*resetTokenValidity) * time.Minute
		}
	})
}
