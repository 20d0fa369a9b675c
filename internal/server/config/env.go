package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "GOPHAUTH_"

// parseEnv overlays GOPHAUTH_* variables onto config. This is the expected
// channel for the signing secret.
func parseEnv(config *Config, getenv func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := getenv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &config.EndpointAddrHTTP)
	str("GRPC_ADDR", &config.EndpointAddrGRPC)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	str("SECRET_KEY", &config.SecretKey)
	str("TOKEN_ISSUER", &config.TokenIssuer)
	str("TOKEN_AUDIENCE", &config.TokenAudience)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("LOG_LEVEL", &config.LogLevel)

	if v, ok := getenv(EnvPrefix + "REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		config.RedisDB = n
	}
	if v, ok := getenv(EnvPrefix + "TOKEN_VALIDITY_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN_VALIDITY_DAYS: %w", EnvPrefix, err)
		}
		config.TokenValidityDays = n
	}
	if v, ok := getenv(EnvPrefix + "SESSION_VALIDITY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSESSION_VALIDITY: %w", EnvPrefix, err)
		}
		config.SessionValidityDuration = d
	}
	return nil
}
