package app

import (
	"errors"
	"fmt"
	"net/http"

	"storyforest/api/internal/auth"
	"storyforest/api/internal/export"
	"storyforest/api/internal/notify"
	"storyforest/api/internal/store"
	"storyforest/api/internal/story"
	"storyforest/api/internal/validation"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var errRateLimited = domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)

// sentinelErrors maps core and store sentinels onto the HTTP contract. Order
// matters only in that the first match wins.
var sentinelErrors = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{story.ErrRootRequiresAdmin, http.StatusForbidden, "ROOT_REQUIRES_ADMIN", "Only administrators can start a story"},
	{story.ErrBookClosed, http.StatusBadRequest, "BOOK_CLOSED", "Book is closed to new contributions"},
	{story.ErrParentBookMismatch, http.StatusBadRequest, "PARENT_BOOK_MISMATCH", "Parent node belongs to another book"},
	{story.ErrBranchLocked, http.StatusConflict, "BRANCH_LOCKED", "Branch is locked"},
	{story.ErrParentNotPublished, http.StatusForbidden, "PARENT_NOT_PUBLISHED", "Parent node is not published"},
	{story.ErrAccountRestricted, http.StatusForbidden, "ACCOUNT_RESTRICTED", "Account may not perform this action"},
	{story.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	{story.ErrHasChildren, http.StatusConflict, "HAS_CHILDREN", "Node has children and cannot be deleted"},
	{store.ErrBookNotEmpty, http.StatusConflict, "BOOK_NOT_EMPTY", "Book still has nodes"},
	{story.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS", "Unknown node status"},
	{story.ErrBookNotFound, http.StatusNotFound, "NOT_FOUND", "Book not found"},
	{story.ErrParentNotFound, http.StatusNotFound, "NOT_FOUND", "Parent node not found"},
	{story.ErrNodeNotFound, http.StatusNotFound, "NOT_FOUND", "Node not found"},
	{story.ErrPathCycle, http.StatusNotFound, "NOT_FOUND", "Node not found"},
	{store.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
	{export.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format"},
	{export.ErrPDFDependencyMissing, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available"},
	{notify.ErrMissingTarget, http.StatusInternalServerError, "SERVER_ERROR", "Server error"},
	{notify.ErrMissingReceiver, http.StatusInternalServerError, "SERVER_ERROR", "Server error"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *validation.Error
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", validationErr.Fields
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			return s.status, s.code, s.msg, nil
		}
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
