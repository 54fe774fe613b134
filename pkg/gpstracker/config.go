package gpstracker

import "strings"

// DefaultAPIURL is the public Invoxia tracker API endpoint.
const DefaultAPIURL = "https://labs.invoxia.io"

// Config holds the credentials and endpoint used by a Client.
type Config struct {
	APIURL   string `json:"api_url" yaml:"api_url"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// BaseURL returns the API URL without a trailing slash, falling back to DefaultAPIURL.
func (c Config) BaseURL() string {
	u := strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if u == "" {
		return DefaultAPIURL
	}
	return u
}
