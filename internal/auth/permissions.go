package auth

// CheckPermission allows the request when the claims carry the required permission.
// A token without any permissions list fails with invalid_payload (401); a list lacking
// the permission fails with access_denied (403).
func CheckPermission(required string, claims Claims) error {
	if !claims.HasPermissionsClaim() {
		return errNoPermissions()
	}
	for _, granted := range claims.Permissions {
		if granted == required {
			return nil
		}
	}
	return errAccessDenied(required)
}
