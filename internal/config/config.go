package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr          string
	DBDSN             string
	JWTIssuer         string
	JWTSecret         string
	JWTTTL            time.Duration
	AdminJWTTTL       time.Duration
	AdminEmail        string
	AdminPasswordHash string
	InternalToken     string
	WebSocketOrigin   string
	AppMode           string
	NotifyWebhookURL  string
	QuoteCacheTTL     time.Duration
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	adminTTL := os.Getenv("ADMIN_JWT_TTL")
	if adminTTL == "" {
		c.AdminJWTTTL = 2 * time.Hour
	} else {
		d, err := time.ParseDuration(adminTTL)
		if err != nil {
			return c, err
		}
		c.AdminJWTTTL = d
	}
	c.AdminEmail = os.Getenv("ADMIN_EMAIL")
	if c.AdminEmail == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}
	c.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	if c.AdminPasswordHash == "" {
		missing = append(missing, "ADMIN_PASSWORD_HASH")
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.AppMode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if c.AppMode == "" {
		c.AppMode = "development"
	}
	if c.AppMode != "development" && c.AppMode != "production" {
		return c, errors.New("invalid APP_MODE: use development or production")
	}
	c.NotifyWebhookURL = strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL"))
	quoteTTL := os.Getenv("QUOTE_CACHE_TTL")
	if quoteTTL == "" {
		c.QuoteCacheTTL = 30 * time.Second
	} else {
		d, err := time.ParseDuration(quoteTTL)
		if err != nil {
			return c, err
		}
		c.QuoteCacheTTL = d
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
