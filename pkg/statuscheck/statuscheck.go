package statuscheck

import (
	"net/http"

	internalstatuscheck "github.com/SmitUplenchwar2687/jobpacer/internal/statuscheck"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/poller"
)

// HTTPError is returned for non-2xx status responses.
type HTTPError = internalstatuscheck.HTTPError

// New returns a status check that GETs statusURL with header.
func New(client *http.Client, statusURL string, header http.Header) poller.StatusCheck {
	return internalstatuscheck.New(client, statusURL, header)
}

// StatusURL extracts the status link from an operation-accepted response.
func StatusURL(accepted map[string]any) (string, error) {
	return internalstatuscheck.StatusURL(accepted)
}

// BearerHeader builds the credential headers for a status check.
func BearerHeader(token, apiKey string) http.Header {
	return internalstatuscheck.BearerHeader(token, apiKey)
}
