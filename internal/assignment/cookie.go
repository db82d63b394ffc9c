package assignment

import (
	"fmt"
	"strings"
	"time"
)

// CookieName is the name of the cookie that pins a client to a variant.
const CookieName = "variant"

// StickyVariant reports the variant a Cookie header pins the client to.
//
// The header is split into name=value pairs and only pairs named "variant"
// with the value "0" or "1" count. If both values are present, variant 0
// wins.
func StickyVariant(cookieHeader string) (variant int, ok bool) {
	var seen [NumVariants]bool

	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || strings.TrimSpace(name) != CookieName {
			continue
		}

		switch strings.Trim(strings.TrimSpace(value), `"`) {
		case "0":
			seen[0] = true
		case "1":
			seen[1] = true
		}
	}

	switch {
	case seen[0]:
		return 0, true
	case seen[1]:
		return 1, true
	default:
		return 0, false
	}
}

// SetCookie renders the Set-Cookie value issued on a fresh assignment.
func SetCookie(variant int, maxAge time.Duration) string {
	return fmt.Sprintf("%s=%d; Max-Age=%d; Secure; HttpOnly; SameSite=Lax",
		CookieName, variant, int(maxAge/time.Second))
}
