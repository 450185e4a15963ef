//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/fsbridge/pkg/driver"
	drivertesting "github.com/marmos91/fsbridge/pkg/driver/testing"
	"github.com/stretchr/testify/require"
)

// setupLocalstack creates a bucket on Localstack (or another S3-compatible
// endpoint) and removes it with everything inside when the test ends.
func setupLocalstack(t *testing.T, bucket string) *s3.Client {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err, "is Localstack running on %s?", endpoint)

	t.Cleanup(func() {
		paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				break
			}
			for _, obj := range page.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	})

	return client
}

// TestS3Driver_Integration runs the driver suite against a real
// S3-compatible service.
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/driver/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Driver_Integration(t *testing.T) {
	ctx := context.Background()
	bucket := "fsbridge-test-bucket"
	client := setupLocalstack(t, bucket)

	// Each subtest gets its own prefix so listings never overlap.
	counter := 0
	suite := &drivertesting.DriverTestSuite{
		NewDriver: func(t *testing.T) (driver.Driver, string) {
			counter++
			d, err := New(ctx, Config{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: fmt.Sprintf("test-%d", counter),
			})
			require.NoError(t, err)
			require.NoError(t, d.CreateDirectory(ctx, "/work", false))
			return d, "/work"
		},
	}
	suite.Run(t)
}
