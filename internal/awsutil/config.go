// Package awsutil provides utilities for loading AWS configuration.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Load loads the AWS configuration, using a custom endpoint if AWS_ENDPOINT_URL is set.
func Load(ctx context.Context, region string) (aws.Config, string, error) {
	endpoint := os.Getenv("AWS_ENDPOINT_URL") // e.g., http://localstack:4566
	if endpoint == "" {
		cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region))
		return cfg, "", err
	}
	cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region), awsCfg.WithBaseEndpoint(endpoint))
	return cfg, endpoint, err
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	AssumeRole(ctx context.Context, in *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RoleARN builds the ARN of roleName in accountID.
func RoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// AssumeAccount assumes roleName in accountID and returns a copy of base
// that signs with the temporary credentials. The returned config is meant
// for a single account pass and must not be cached.
func AssumeAccount(ctx context.Context, base aws.Config, client STSAPI, accountID, roleName string) (aws.Config, error) {
	out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(RoleARN(accountID, roleName)),
		RoleSessionName: aws.String("SupportCaseCollection-" + accountID),
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("assume role in %s: %w", accountID, err)
	}
	c := out.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretAccessKey == nil {
		return aws.Config{}, errors.New("assume role returned no credentials")
	}
	cfg := base.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId), aws.ToString(c.SecretAccessKey), aws.ToString(c.SessionToken),
	)
	return cfg, nil
}

// CallerAccountID returns the account id of the credentials in use.
func CallerAccountID(ctx context.Context, client STSAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}
