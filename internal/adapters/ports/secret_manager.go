package ports

import "context"

// Secret represents a retrieved secret value with metadata
type Secret struct {
	Value     string
	Version   string
	CreatedAt string
	Metadata  map[string]string
}

// SecretManagerAdapter is the collector's read-only secrets surface. The
// collector only ever fetches at startup: the operating private key and,
// optionally, the ledger password. Rotation and writes belong to the
// provisioning tooling, not this process.
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name.
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
