// Package keysource resolves the creator account's active key from its
// configured reference. Deployments either pass the WIF directly through
// the environment or point at a HashiCorp Vault secret so the key never
// appears in process configuration.
package keysource

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

const defaultVaultField = "active_key"

// Resolve turns a key reference into the active key WIF.
//
// A reference of the form
//
//	vault://vault.example.com:8200/secret/hive/creator?field=active_key
//
// is read from Vault's KV v2 API, authenticated with the VAULT_TOKEN
// environment variable. Anything else is returned as-is and treated as a
// literal WIF.
func Resolve(ctx context.Context, reference string, log *slog.Logger) (string, error) {
	if !strings.HasPrefix(reference, "vault://") {
		return reference, nil
	}
	return resolveVault(ctx, reference, log)
}

func resolveVault(ctx context.Context, reference string, log *slog.Logger) (string, error) {
	parsed, err := url.Parse(reference)
	if err != nil {
		return "", fmt.Errorf("invalid vault key reference: %w", err)
	}

	mountPath, dataPath, err := splitVaultPath(parsed.Path)
	if err != nil {
		return "", err
	}

	field := parsed.Query().Get("field")
	if field == "" {
		field = defaultVaultField
	}

	scheme := parsed.Query().Get("scheme")
	if scheme == "" {
		scheme = "https"
	}

	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s://%s", scheme, parsed.Host)
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return "", fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	// KV v2 path structure.
	path := fmt.Sprintf("%s/data/%s", mountPath, dataPath)
	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read key from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("key not found in Vault at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid data format in Vault response")
	}
	key, ok := data[field].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("field %s not found in Vault secret", field)
	}

	log.Info("Resolved active key from Vault",
		slog.String("path", path),
		slog.String("field", field))
	return key, nil
}

// splitVaultPath splits "/secret/hive/creator" into the mount ("secret")
// and the secret path below it ("hive/creator").
func splitVaultPath(p string) (string, string, error) {
	parts := strings.SplitN(strings.Trim(p, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("vault key reference needs a mount and a secret path, got %q", p)
	}
	return parts[0], parts[1], nil
}
