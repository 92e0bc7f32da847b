package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
)

// getECRToken gets a token for Elastic Container Registry using the AWS SDK.
func getECRToken(ctx context.Context, options string) (string, error) {
	opts, err := parseECROptions(options)
	if err != nil {
		return "", err
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", err
	}

	client := ecr.NewFromConfig(cfg)

	result, err := client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", err
	}

	if len(result.AuthorizationData) > 0 && result.AuthorizationData[0].AuthorizationToken != nil {
		return *result.AuthorizationData[0].AuthorizationToken, nil
	}
	return "", fmt.Errorf("no authorization token returned")
}

// parseECROptions parses provider options for the ECR provider, e.g.
// 'profile=dev,region=us-east-1'.
func parseECROptions(options string) ([]func(*config.LoadOptions) error, error) {
	opts := []func(*config.LoadOptions) error{}

	if options == "" {
		return opts, nil
	}

	for _, opt := range strings.Split(options, ",") {
		kv := strings.Split(opt, "=")
		if len(kv) != 2 {
			return nil, fmt.Errorf("unable to parse configuration option %s for provider", kv)
		}
		key := strings.ToLower(kv[0])
		val := strings.ToLower(kv[1])
		switch key {
		case "profile":
			opts = append(opts, config.WithSharedConfigProfile(val))
		case "region":
			opts = append(opts, config.WithRegion(val))
		default:
			return nil, fmt.Errorf("unable to parse configuration option %s=%s for provider", key, val)
		}
	}
	return opts, nil
}
