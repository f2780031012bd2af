package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/hivemachines/account-provisioner/interfaces"
)

// Factory creates address ledgers from URI strings, dispatching on scheme:
//
//	file:///var/lib/provisioner/btc_addresses.json
//	sqlite:///var/lib/provisioner/ledger.db
//	s3://ACCESS_KEY:SECRET_KEY@bucket/prefix?region=us-east-1&endpoint=...
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a ledger factory logging through log.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// LedgerFor parses uri and opens the matching backend.
func (f *Factory) LedgerFor(uri string) (interfaces.AddressLedger, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger URI %s: %w", uri, err)
	}

	switch parsed.Scheme {
	case "file":
		return NewFileLedger(fileURIPath(parsed), f.log)
	case "sqlite":
		return NewSQLiteLedger(fileURIPath(parsed), f.log)
	case "s3":
		return f.s3LedgerFor(parsed)
	default:
		return nil, fmt.Errorf("unsupported ledger URI scheme: %s", parsed.Scheme)
	}
}

func (f *Factory) s3LedgerFor(parsed *url.URL) (interfaces.AddressLedger, error) {
	bucket := parsed.Host
	if bucket == "" {
		return nil, fmt.Errorf("s3 ledger URI is missing a bucket name")
	}

	var accessKey, secretKey string
	if parsed.User != nil {
		accessKey = parsed.User.Username()
		secretKey, _ = parsed.User.Password()
	}

	query := parsed.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Ledger(
		bucket,
		strings.Trim(parsed.Path, "/"),
		region,
		query.Get("endpoint"),
		accessKey,
		secretKey,
		f.log,
	)
}

// fileURIPath turns file://relative/path and file:///absolute/path into
// filesystem paths. A host component is treated as the first path element,
// so file://btc_addresses.json names a file in the working directory.
func fileURIPath(parsed *url.URL) string {
	if parsed.Host != "" {
		return path.Join(parsed.Host, strings.TrimPrefix(parsed.Path, "/"))
	}
	return parsed.Path
}
