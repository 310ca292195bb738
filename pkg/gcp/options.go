package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/angelmondragon/testhub-backend/pkg/config"
)

// ClientOptions resolves explicit credentials for Google Cloud clients. Inline JSON
// wins over a credentials file; with neither, application default credentials apply.
func ClientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}
