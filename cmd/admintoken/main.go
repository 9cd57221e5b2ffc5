// Command admintoken mints bearer tokens for the operator endpoints, or a new
// signing secret with -generate-secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/service"
	"github.com/sirupsen/logrus"
)

func main() {
	subject := flag.String("subject", "operator", "token subject")
	expiry := flag.Duration("expiry", 0, "token lifetime (defaults to ADMIN_TOKEN_EXPIRY)")
	generateSecret := flag.Bool("generate-secret", false, "print a new ADMIN_JWT_SECRET and exit")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	if *generateSecret {
		secret, err := service.GenerateSecretKey()
		if err != nil {
			logger.WithError(err).Fatal("Failed to generate secret")
		}
		fmt.Println(secret)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Admin.JWTSecret == "" {
		logger.Fatal("ADMIN_JWT_SECRET is not set")
	}
	if *expiry > 0 {
		cfg.Admin.TokenExpiry = *expiry
	}

	tokens, err := service.NewTokenService(&cfg.Admin, nil, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token service")
	}

	token, expiresAt, err := tokens.Issue(*subject)
	if err != nil {
		logger.WithError(err).Fatal("Failed to issue token")
	}

	logger.WithFields(logrus.Fields{
		"subject":    *subject,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("Admin token issued")
	fmt.Println(token)
}
