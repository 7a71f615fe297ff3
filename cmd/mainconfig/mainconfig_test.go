package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/uootd-quotes/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", awsCfg.Region)
	require.NotNil(t, awsCfg.EndpointResolverWithOptions)

	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(s3.ServiceID, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", ep.URL)

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint("SQS", "us-east-1")
	assert.Error(t, err)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)

	assert.NotNil(t, NewS3Client(awsCfg, cfg))
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)
	assert.Nil(t, awsCfg.EndpointResolverWithOptions)
}
