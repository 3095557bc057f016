package deviceflow

import (
	"fmt"
	"net/url"
	"path"
)

// endpointURL joins a relay path onto baseURL, keeping any path prefix baseURL carries
func endpointURL(baseURL, endpoint string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", baseURL)
	}

	u.Path = path.Join("/", u.Path, endpoint)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// completeVerificationURI embeds the user code per RFC 8628 section 3.3.1
func completeVerificationURI(verificationURI, userCode string) string {
	return verificationURI + "?" + url.Values{"code": {userCode}}.Encode()
}
