// Package secret stores data source passwords outside the main database.
package secret

// SecretStore is the pluggable backend for sensitive values.
type SecretStore interface {
	// Set stores a secret value under the given key, replacing any previous one.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// DataSourceKey is the key a data source password is stored under.
func DataSourceKey(id string) string {
	return "datasource:" + id
}
