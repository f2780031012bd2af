package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/hivemachines/account-provisioner/interfaces"
)

// S3Ledger stores the used-address set as one object per address under a
// key prefix in an S3 (or compatible) bucket. Object existence is the
// membership test, so the set survives the host and needs no startup load.
//
// S3 has no native compare-and-swap on plain puts, so same-address races
// are serialized by an in-process mutex; the deployment assumption is a
// single writer process per bucket prefix.
type S3Ledger struct {
	client *s3.S3
	bucket string
	prefix string
	log    *slog.Logger

	mu sync.Mutex
}

// NewS3Ledger creates a ledger in the given bucket under prefix. Static
// credentials are optional; without them the default AWS credential chain
// applies.
func NewS3Ledger(bucket, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Ledger, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Ledger{
		client: s3.New(sess),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
	}, nil
}

// Reserve implements interfaces.AddressLedger.
func (l *S3Ledger) Reserve(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	used, err := l.contains(ctx, address)
	if err != nil {
		return false, err
	}
	if used {
		return false, nil
	}

	key := l.objectKey(address)
	_, err = l.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader([]byte(time.Now().UTC().Format(time.RFC3339))),
	})
	if err != nil {
		return false, fmt.Errorf("failed to persist reservation to S3: %w", err)
	}

	l.log.Debug("Reserved address in S3",
		slog.String("bucket", l.bucket),
		slog.String("key", key))
	return true, nil
}

// Contains implements interfaces.AddressLedger.
func (l *S3Ledger) Contains(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.contains(ctx, address)
}

// Close implements interfaces.AddressLedger.
func (l *S3Ledger) Close() error {
	return nil
}

func (l *S3Ledger) contains(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	_, err := l.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.objectKey(address)),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check address in S3: %w", err)
	}
	return true, nil
}

func (l *S3Ledger) objectKey(address interfaces.BTCAddress) string {
	return path.Join(l.prefix, "used-addresses", address.String())
}
