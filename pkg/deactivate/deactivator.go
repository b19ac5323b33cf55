// Package deactivate revokes console and programmatic access of IAM users.
package deactivate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrProvider is returned when one or more revoke calls failed
var ErrProvider = errors.New("identity provider error")

// Access key statuses
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// AccessKeyMetadata describes an access key of a user
type AccessKeyMetadata struct {
	AccessKeyID string
	Status      string
}

// IdentityMutator changes the access of IAM users. DeleteLoginProfile must
// treat an already missing login profile as success.
type IdentityMutator interface {
	DeleteLoginProfile(ctx context.Context, userName string) error
	ListAccessKeys(ctx context.Context, userName string) ([]AccessKeyMetadata, error)
	UpdateAccessKeyStatus(ctx context.Context, userName, accessKeyID, status string) error
}

// Deactivator disables console login and access keys of a user
type Deactivator struct {
	mutator IdentityMutator
	logger  *zap.Logger
}

// NewDeactivator creates a Deactivator
func NewDeactivator(mutator IdentityMutator, logger *zap.Logger) *Deactivator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deactivator{mutator: mutator, logger: logger}
}

// Deactivate removes the login profile of userName and sets all of its active
// access keys to inactive. Every step is attempted even if an earlier one
// failed; nothing is rolled back. Calling it again is safe.
func (d *Deactivator) Deactivate(ctx context.Context, userName string) error {
	var errs []error

	if err := d.DisableConsoleAccess(ctx, userName); err != nil {
		errs = append(errs, err)
	}
	if err := d.DisableProgrammaticAccess(ctx, userName); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: deactivating user %s: %w", ErrProvider, userName, errors.Join(errs...))
	}
	return nil
}

// DisableConsoleAccess removes the login profile of userName
func (d *Deactivator) DisableConsoleAccess(ctx context.Context, userName string) error {
	if err := d.mutator.DeleteLoginProfile(ctx, userName); err != nil {
		d.logger.Error("failed to delete login profile", zap.String("user", userName), zap.Error(err))
		return fmt.Errorf("error deleting login profile: %w", err)
	}
	d.logger.Info("console access disabled", zap.String("user", userName))
	return nil
}

// DisableProgrammaticAccess sets every active access key of userName to inactive
func (d *Deactivator) DisableProgrammaticAccess(ctx context.Context, userName string) error {
	keys, err := d.mutator.ListAccessKeys(ctx, userName)
	if err != nil {
		d.logger.Error("failed to list access keys", zap.String("user", userName), zap.Error(err))
		return fmt.Errorf("error listing access keys: %w", err)
	}

	var errs []error
	for _, key := range keys {
		if key.Status != StatusActive {
			continue
		}
		if err := d.mutator.UpdateAccessKeyStatus(ctx, userName, key.AccessKeyID, StatusInactive); err != nil {
			d.logger.Error("failed to deactivate access key",
				zap.String("user", userName),
				zap.String("access_key_id", key.AccessKeyID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("error deactivating access key %s: %w", key.AccessKeyID, err))
			continue
		}
		d.logger.Info("access key deactivated",
			zap.String("user", userName),
			zap.String("access_key_id", key.AccessKeyID),
		)
	}
	return errors.Join(errs...)
}
