package auth

import "strings"

// ExtractBearerToken returns the token from an Authorization header value. The scheme must
// be Bearer (any case) followed by exactly one token.
func ExtractBearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errHeaderMissing()
	}

	parts := strings.Fields(header)
	if !strings.EqualFold(parts[0], "bearer") {
		return "", errNotBearer()
	}
	if len(parts) == 1 {
		return "", errTokenNotFound()
	}
	if len(parts) > 2 {
		return "", errNotSingleToken()
	}
	return parts[1], nil
}
