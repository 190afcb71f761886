package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	bazaaraws "github.com/the-bazaar/bazaar-backend/internal/aws"
)

// TestLocalStack runs S3 and SES in a LocalStack container. Config points the
// application's AWS clients at it.
type TestLocalStack struct {
	Container *localstack.LocalStackContainer
	Config    config.AWSConfig
	SES       *ses.Client
}

func NewTestLocalStack(t *testing.T) *TestLocalStack {
	t.Helper()
	ctx := context.Background()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.0",
		testcontainers.WithReuseByName("bazaar-backend-test-localstack"),
		testcontainers.WithEnv(map[string]string{"SERVICES": "s3,ses"}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Ready.").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		),
	)
	require.NoError(t, err, "Failed to start LocalStack container")

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err, "Failed to get LocalStack endpoint")

	cfg := config.AWSConfig{
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		EndpointURL:     endpoint,
		Bucket:          "bazaar-audit-exports",
		FromEmail:       "no-reply@bazaar.test",
	}

	awsCfg, err := bazaaraws.LoadAWSConfig(ctx, cfg)
	require.NoError(t, err, "Failed to load AWS config")
	sesClient := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	// LocalStack refuses to send from an unverified identity
	_, err = sesClient.VerifyEmailIdentity(ctx, &ses.VerifyEmailIdentityInput{
		EmailAddress: aws.String(cfg.FromEmail),
	})
	require.NoError(t, err, "Failed to verify sender identity")

	ls := &TestLocalStack{Container: container, Config: cfg, SES: sesClient}
	t.Cleanup(ls.Close)
	return ls
}

func (ls *TestLocalStack) Close() {
	if ls.Container != nil {
		_ = ls.Container.Terminate(context.Background())
	}
}

// SentEmailCount reports how many messages SES has accepted so far.
func (ls *TestLocalStack) SentEmailCount(t *testing.T) float64 {
	t.Helper()
	out, err := ls.SES.GetSendQuota(context.Background(), &ses.GetSendQuotaInput{})
	require.NoError(t, err)
	return out.SentLast24Hours
}
