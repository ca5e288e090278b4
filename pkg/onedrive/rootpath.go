package onedrive

import (
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
)

// apiRootPrefix is how the Graph API addresses drive items by path.
// Destination folders are joined onto it when request URLs are built, so a
// root path that already carries the prefix would double it in every call.
const apiRootPrefix = "/drive/root:"

// ValidateRootPath checks that path is usable as an upload destination:
// it must be absolute and must not carry the Graph API path prefix.
func ValidateRootPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return apperr.Newf(apperr.Validation, "root path %s must start with /", path)
	}
	if path == apiRootPrefix || strings.HasPrefix(path, apiRootPrefix+"/") {
		return apperr.Newf(apperr.Validation, "root path %s must not contain %s", path, apiRootPrefix)
	}
	return nil
}
