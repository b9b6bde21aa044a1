package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWSConfig loads the default AWS config. AWS_ENDPOINT, when set, is
// returned alongside so clients can target LocalStack.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, string, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, "", fmt.Errorf("failed to load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	return cfg, os.Getenv("AWS_ENDPOINT"), nil
}
