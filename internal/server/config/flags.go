package config

import (
	"flag"
	"os"
	"time"

	"github.com/carelink-app/carelink/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-x string   Redis address for rate-limit counters
//	-u string   audit S3 access key
//	-p string   audit S3 secret key
//	-b string   audit S3 bucket name
//	-g string   audit S3 region
//	-e string   audit S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-x", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access_token_ttl (in minutes)")
	refreshTokenTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh_token_ttl (in minutes)")

	fs.StringVar(&config.RedisAddr, "x", config.RedisAddr, "Redis address for rate-limit counters")

	fs.StringVar(&config.AuditS3AccessKey, "u", config.AuditS3AccessKey, "audit S3 access key")
	fs.StringVar(&config.AuditS3SecretKey, "p", config.AuditS3SecretKey, "audit S3 secret key")
	fs.StringVar(&config.AuditS3Bucket, "b", config.AuditS3Bucket, "audit S3 bucket")
	fs.StringVar(&config.AuditS3Region, "g", config.AuditS3Region, "audit S3 region")
	fs.StringVar(&config.AuditS3BaseEndpoint, "e", config.AuditS3BaseEndpoint, "audit S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTokenTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTokenTTL) * time.Minute
}
