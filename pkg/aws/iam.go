package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/younsl/iamdormant/pkg/deactivate"
)

// IAMAPI is the subset of the IAM API used by IAMClient
type IAMAPI interface {
	GenerateCredentialReport(ctx context.Context, params *iam.GenerateCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GenerateCredentialReportOutput, error)
	GetCredentialReport(ctx context.Context, params *iam.GetCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GetCredentialReportOutput, error)
	DeleteLoginProfile(ctx context.Context, params *iam.DeleteLoginProfileInput, optFns ...func(*iam.Options)) (*iam.DeleteLoginProfileOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
}

// IAMClient struct for IAM client
type IAMClient struct {
	client IAMAPI
	region string
}

// NewIAMClient creates a new IAMClient
func NewIAMClient(ctx context.Context, region string) (*IAMClient, error) {
	// IAM is a global service but we maintain region for consistency with the SDK config
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithEC2IMDSClientEnableState(imds.ClientEnabled),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return NewIAMClientFromAPI(iam.NewFromConfig(cfg), region), nil
}

// NewIAMClientFromAPI wraps an existing IAM API implementation
func NewIAMClientFromAPI(api IAMAPI, region string) *IAMClient {
	return &IAMClient{client: api, region: region}
}

// Region returns the region the client was configured with
func (c *IAMClient) Region() string {
	return c.region
}

// GenerateCredentialReport starts generation of a credential report
func (c *IAMClient) GenerateCredentialReport(ctx context.Context) error {
	_, err := c.client.GenerateCredentialReport(ctx, &iam.GenerateCredentialReportInput{})
	if err != nil {
		return fmt.Errorf("error generating credential report: %w", err)
	}
	return nil
}

// GetCredentialReport returns the content of the latest credential report
func (c *IAMClient) GetCredentialReport(ctx context.Context) ([]byte, error) {
	out, err := c.client.GetCredentialReport(ctx, &iam.GetCredentialReportInput{})
	if err != nil {
		if IsReportNotReady(err) {
			return nil, fmt.Errorf("credential report is still being generated: %w", err)
		}
		return nil, fmt.Errorf("error getting credential report (%s): %w", ErrorCode(err), err)
	}
	return out.Content, nil
}

// DeleteLoginProfile removes console access of a user. A user without a
// login profile is left as is.
func (c *IAMClient) DeleteLoginProfile(ctx context.Context, userName string) error {
	_, err := c.client.DeleteLoginProfile(ctx, &iam.DeleteLoginProfileInput{
		UserName: aws.String(userName),
	})
	if err != nil && !IsNoSuchEntity(err) {
		return fmt.Errorf("error deleting login profile of %s: %w", userName, err)
	}
	return nil
}

// ListAccessKeys returns all access keys of a user
func (c *IAMClient) ListAccessKeys(ctx context.Context, userName string) ([]deactivate.AccessKeyMetadata, error) {
	var keys []deactivate.AccessKeyMetadata

	paginator := iam.NewListAccessKeysPaginator(c.client, &iam.ListAccessKeysInput{
		UserName: aws.String(userName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing access keys of %s: %w", userName, err)
		}
		for _, key := range page.AccessKeyMetadata {
			keys = append(keys, deactivate.AccessKeyMetadata{
				AccessKeyID: aws.ToString(key.AccessKeyId),
				Status:      string(key.Status),
			})
		}
	}

	return keys, nil
}

// UpdateAccessKeyStatus sets the status of an access key
func (c *IAMClient) UpdateAccessKeyStatus(ctx context.Context, userName, accessKeyID, status string) error {
	_, err := c.client.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		UserName:    aws.String(userName),
		AccessKeyId: aws.String(accessKeyID),
		Status:      types.StatusType(status),
	})
	if err != nil {
		return fmt.Errorf("error updating access key %s of %s: %w", accessKeyID, userName, err)
	}
	return nil
}

// IsNoSuchEntity reports whether err is an IAM NoSuchEntity error
func IsNoSuchEntity(err error) bool {
	var nse *types.NoSuchEntityException
	return errors.As(err, &nse)
}

// IsReportNotReady reports whether err says the credential report is still being generated
func IsReportNotReady(err error) bool {
	var notReady *types.CredentialReportNotReadyException
	return errors.As(err, &notReady)
}

// ErrorCode returns the API error code of err, or "Unknown"
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "Unknown"
}
