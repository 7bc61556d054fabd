package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It lets CI jobs and one-off scripts run without a stored account.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The environment
// holds a single unnamed account, so requests for any other account name
// fall through to the stored-account backends.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	if name != "" && name != "default" {
		return nil, ErrCredentialsNotFound
	}

	consumerKey := os.Getenv("TWDL_CONSUMER_KEY")
	consumerSecret := os.Getenv("TWDL_CONSUMER_SECRET")
	accessToken := os.Getenv("TWDL_ACCESS_TOKEN")
	accessTokenSecret := os.Getenv("TWDL_ACCESS_TOKEN_SECRET")

	if consumerKey == "" || consumerSecret == "" || accessToken == "" || accessTokenSecret == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables carry no account name
	if name == "" {
		name = "default"
	}

	return &Account{
		Name:              name,
		ConsumerKey:       consumerKey,
		ConsumerSecret:    consumerSecret,
		AccessToken:       accessToken,
		AccessTokenSecret: accessTokenSecret,
		LastModified:      time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	if name != "" && name != "default" {
		return false
	}
	return os.Getenv("TWDL_CONSUMER_KEY") != "" &&
		os.Getenv("TWDL_CONSUMER_SECRET") != "" &&
		os.Getenv("TWDL_ACCESS_TOKEN") != "" &&
		os.Getenv("TWDL_ACCESS_TOKEN_SECRET") != ""
}
