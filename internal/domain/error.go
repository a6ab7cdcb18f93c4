package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidExecContext   = errors.New("invalid execution context")
	ErrOperationFailed      = errors.New("operation failed")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrPlanInactive         = errors.New("plan is not active")
	ErrAmountBelowMinimum   = errors.New("charge amount below gateway minimum")
	ErrPaymentNotPending    = errors.New("payment is no longer pending")
	ErrPaymentExpired       = errors.New("payment authority has expired")
	ErrNotOwner             = errors.New("payment does not belong to user")
	ErrReferralCodeUsed     = errors.New("referral code already submitted")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrLockNotAcquired      = errors.New("could not acquire lock")
)
