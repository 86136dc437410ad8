package validation

import (
	"net"
	"net/url"
	"strings"

	apperrors "github.com/neuravision/neuravision/internal/errors"
)

// URLPolicy restricts which remote image locations may be fetched
type URLPolicy struct {
	AllowedSchemes []string
	// AllowedHosts admits each listed host and its subdomains. Empty admits every host.
	AllowedHosts []string
	// AllowPrivateNetworks admits localhost and loopback, private, link-local
	// and unspecified IP literals.
	AllowPrivateNetworks bool
}

// DefaultURLPolicy allows http and https to any public host
func DefaultURLPolicy() URLPolicy {
	return URLPolicy{AllowedSchemes: []string{"http", "https"}}
}

// URLValidator checks image locations against a URLPolicy before anything is fetched
type URLValidator struct {
	schemes      map[string]struct{}
	hosts        []string
	allowPrivate bool
}

// NewURLValidator creates a validator with DefaultURLPolicy
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithPolicy(DefaultURLPolicy())
}

// NewURLValidatorWithPolicy creates a validator for policy. Entries are
// trimmed and lowercased; an empty scheme list falls back to http and https.
func NewURLValidatorWithPolicy(policy URLPolicy) *URLValidator {
	schemes := normalizeList(policy.AllowedSchemes)
	if len(schemes) == 0 {
		schemes = DefaultURLPolicy().AllowedSchemes
	}

	v := &URLValidator{
		schemes:      make(map[string]struct{}, len(schemes)),
		allowPrivate: policy.AllowPrivateNetworks,
	}
	for _, s := range schemes {
		v.schemes[s] = struct{}{}
	}
	for _, h := range normalizeList(policy.AllowedHosts) {
		v.hosts = append(v.hosts, strings.TrimPrefix(h, "."))
	}
	return v
}

// ValidateImageURL validates if the provided URL may be fetched
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if _, ok := v.schemes[scheme]; !ok {
		return apperrors.NewValidationError("URL scheme not allowed: "+scheme, nil)
	}

	if parsedURL.User != nil {
		return apperrors.NewValidationError("URL must not carry credentials", nil)
	}

	host := strings.ToLower(strings.TrimSuffix(parsedURL.Hostname(), "."))
	if host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.allowPrivate && isPrivateHost(host) {
		return apperrors.NewValidationError("URL points at a private network address", nil)
	}

	if !v.isHostAllowed(host) {
		return apperrors.NewValidationError("URL host not allowed: "+host, nil)
	}

	return nil
}

// isHostAllowed matches host exactly or as a subdomain of an allowed entry
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.hosts) == 0 {
		return true
	}
	for _, allowed := range v.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// isPrivateHost only looks at the literal host; names are not resolved.
func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// normalizeList trims, lowercases and splits comma separated entries
func normalizeList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
