// Package vault manages per-user OAuth credentials for Google. Tokens are
// encrypted before they touch storage and refreshed transparently when the
// workflow asks for one near expiry. A missing or revoked grant surfaces as
// an authentication-required error so callers fail fast instead of retrying.
package vault

import (
	"context"
	"time"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/crypto"
	"trade-coach/internal/store"
)

const (
	// Provider is the credential provider key used in storage.
	Provider = "google"

	// refreshWindow is how close to expiry a token gets refreshed. The
	// buffer keeps a token valid for the whole downstream API call.
	refreshWindow = 5 * time.Minute
)

// Token is a decrypted OAuth token pair.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scopes       []string
}

// Exchanger talks to the OAuth provider's token endpoint.
type Exchanger interface {
	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*Token, error)
	// Refresh trades a refresh token for a fresh access token. A revoked
	// grant returns an authentication-required error.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Vault stores and serves user credentials.
type Vault struct {
	storage   store.Storage
	cipher    *crypto.TokenCipher
	exchanger Exchanger
	logger    logging.Logger
}

func New(storage store.Storage, cipher *crypto.TokenCipher, exchanger Exchanger, logger logging.Logger) *Vault {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Vault{
		storage:   storage,
		cipher:    cipher,
		exchanger: exchanger,
		logger:    logger,
	}
}

// GetValidToken returns a usable access token for the user, refreshing at
// most once when the stored token expires within the refresh window. The
// refreshed pair is re-encrypted and persisted before returning.
func (v *Vault) GetValidToken(ctx context.Context, userID string) (string, error) {
	cred, err := v.storage.GetCredential(ctx, userID, Provider)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return "", errors.AuthRequiredError("user has not connected their Google account")
		}
		return "", err
	}

	accessToken, err := v.cipher.Decrypt(cred.AccessTokenEncrypted)
	if err != nil {
		return "", reencryptRequired(userID, err, v.logger)
	}

	if time.Now().Add(refreshWindow).Before(cred.ExpiresAt) {
		return accessToken, nil
	}

	refreshToken, err := v.cipher.Decrypt(cred.RefreshTokenEncrypted)
	if err != nil {
		return "", reencryptRequired(userID, err, v.logger)
	}
	if refreshToken == "" {
		return "", errors.AuthRequiredError("stored credential has no refresh token")
	}

	v.logger.Info("Refreshing expiring access token",
		logging.String("user_id", userID),
		logging.Duration("until_expiry", time.Until(cred.ExpiresAt)))

	fresh, err := v.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeAuthRequired) {
			// The grant is gone. The record is superseded in place with the
			// refresh token cleared, so later calls fail fast without a
			// token endpoint round trip. Credential records are never
			// deleted here; only an explicit disconnect removes them.
			dead := &Token{AccessToken: accessToken, Expiry: cred.ExpiresAt, Scopes: cred.Scopes}
			if storeErr := v.StoreTokens(ctx, userID, dead); storeErr != nil {
				v.logger.Warn("Failed to supersede revoked credential",
					logging.String("user_id", userID), logging.Err(storeErr))
			}
		}
		return "", err
	}

	// Providers often omit the refresh token on refresh responses.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = refreshToken
	}
	if fresh.Scopes == nil {
		fresh.Scopes = cred.Scopes
	}

	if err := v.StoreTokens(ctx, userID, fresh); err != nil {
		return "", err
	}

	return fresh.AccessToken, nil
}

// reencryptRequired converts a decryption failure on the credential path
// into an authentication-required error. A token that no longer decrypts,
// typically after an encryption secret rotation, is as unusable as a revoked
// grant; only the user reconnecting produces a working credential. Other
// error types pass through unchanged.
func reencryptRequired(userID string, err error, logger logging.Logger) error {
	if !errors.IsType(err, errors.ErrTypeDecryption) {
		return err
	}
	logger.Warn("Stored credential no longer decrypts, user must reconnect",
		logging.String("user_id", userID), logging.Err(err))
	return errors.AuthRequiredError("stored credential cannot be decrypted, reconnect the account")
}

// StoreTokens encrypts and persists a token pair for the user.
func (v *Vault) StoreTokens(ctx context.Context, userID string, token *Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.ValidationError("access token is required")
	}

	encAccess, err := v.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	encRefresh, err := v.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return err
	}

	return v.storage.UpsertCredential(ctx, &store.CredentialRecord{
		UserID:                userID,
		Provider:              Provider,
		AccessTokenEncrypted:  encAccess,
		RefreshTokenEncrypted: encRefresh,
		ExpiresAt:             token.Expiry,
		Scopes:                token.Scopes,
	})
}

// ExchangeCode completes the OAuth authorization code flow for a user and
// stores the resulting credential.
func (v *Vault) ExchangeCode(ctx context.Context, userID, code string) error {
	if code == "" {
		return errors.ValidationError("authorization code is required")
	}

	token, err := v.exchanger.Exchange(ctx, code)
	if err != nil {
		return err
	}

	return v.StoreTokens(ctx, userID, token)
}

// Disconnect removes the user's stored credential.
func (v *Vault) Disconnect(ctx context.Context, userID string) error {
	return v.storage.DeleteCredential(ctx, userID, Provider)
}
