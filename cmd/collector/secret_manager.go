package main

import (
	"context"
	"os"

	"github.com/onchainbill/collector/internal/adapters/ports"
	"github.com/onchainbill/collector/internal/adapters/secrets"
	"github.com/onchainbill/collector/internal/config"
	"go.uber.org/zap"
)

// initSecretManager initializes the secret manager backend selected by
// SECRET_MANAGER. Supports:
//   - "vault": HashiCorp Vault KV (VAULT_ADDR, VAULT_TOKEN)
//   - "aws": AWS Secrets Manager (AWS_REGION, default credentials chain)
//   - "local": local filesystem (SECRETS_BASE_PATH), development only
//
// Returns nil when no secret manager is configured; callers fall back to
// plain environment variables.
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	switch cfg.Secrets.Manager {
	case "":
		return nil
	case "vault":
		return initVaultSecretManager(ctx, cfg, logger)
	case "aws":
		return initAWSSecretManager(ctx, cfg, logger)
	case "local":
		logger.Warn("Using local filesystem secret manager - NOT for production use!",
			zap.String("base_path", cfg.Secrets.LocalBasePath),
		)
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalBasePath, logger)
	default:
		logger.Fatal("Unknown SECRET_MANAGER type",
			zap.String("secret_manager", cfg.Secrets.Manager),
		)
		return nil
	}
}

func initVaultSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	if cfg.Secrets.VaultAddress == "" {
		logger.Fatal("VAULT_ADDR environment variable is required when SECRET_MANAGER=vault")
	}

	vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
	vaultCfg.Token = cfg.Secrets.VaultToken
	if roleID := os.Getenv("VAULT_ROLE_ID"); roleID != "" {
		vaultCfg.AuthMethod = "approle"
		vaultCfg.RoleID = roleID
		vaultCfg.SecretID = os.Getenv("VAULT_SECRET_ID")
	}

	sm, err := secrets.NewVaultAdapter(ctx, vaultCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Vault secret manager",
			zap.Error(err),
			zap.String("address", cfg.Secrets.VaultAddress),
		)
	}

	return sm
}

func initAWSSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
	awsCfg.Profile = os.Getenv("AWS_PROFILE")
	awsCfg.Endpoint = os.Getenv("AWS_SECRETS_ENDPOINT")

	sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AWS Secrets Manager",
			zap.Error(err),
			zap.String("region", cfg.Secrets.AWSRegion),
		)
	}

	return sm
}
