package repository

import "errors"

var (
	// ErrEntitlementNotFound indicates the user has no subscription record
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrInvalidUserID indicates an empty or malformed user id
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidTier indicates a tier other than free or premium
	ErrInvalidTier = errors.New("invalid tier")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
