package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-d", "-r", "-rp", "-rdb", "-s", "-i", "-aud", "-t", "-session",
	"-u", "-p", "-region", "-e", "-l",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string         HTTP bind address (e.g. ":8080")
//	-g string         gRPC health bind address (e.g. ":50051")
//	-d string         PostgreSQL DSN
//	-r string         Redis address
//	-rp string        Redis password
//	-rdb int          Redis database number
//	-s string         access-token signing secret
//	-i string         token issuer
//	-aud string       token audience
//	-t int            access-token validity, days
//	-session duration cookie-session lifetime (e.g. "336h")
//	-u string         S3 root user
//	-p string         S3 root password
//	-region string    S3 region
//	-e string         S3 base endpoint
//	-l string         log level
//
// Arguments that belong to other flag sets (-c/-config) are filtered out
// with flagx.FilterArgs before parsing.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("gophauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "rp", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "rdb", config.RedisDB, "redis database")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "signing secret")
	fs.StringVar(&config.TokenIssuer, "i", config.TokenIssuer, "token issuer")
	fs.StringVar(&config.TokenAudience, "aud", config.TokenAudience, "token audience")
	fs.IntVar(&config.TokenValidityDays, "t", config.TokenValidityDays, "access token validity (in days)")
	fs.DurationVar(&config.SessionValidityDuration, "session", config.SessionValidityDuration, "cookie session validity")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
