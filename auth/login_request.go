package auth

import "strings"

// LoginRequest is one of the three ways a session can be established. The
// variants are dispatched by Service.Login, each producing a persisted
// session through its own pipeline.
type LoginRequest interface {
	isLoginRequest()
}

// CookieHarvest opens an interactive login surface at the portal and waits
// for the session cookie to appear.
type CookieHarvest struct {
	URL string
}

// DeepLinkHandoff carries a ready-made cookie and portal URL handed over by
// another app instance through the desqta://auth deep link.
type DeepLinkHandoff struct {
	Cookie string
	URL    string
}

// QrSso carries the raw seqtalearn://sso/ deep link from a scanned QR code.
type QrSso struct {
	Deeplink string
}

func (CookieHarvest) isLoginRequest()   {}
func (DeepLinkHandoff) isLoginRequest() {}
func (QrSso) isLoginRequest()           {}

// RequestForURL classifies a login trigger URL into the matching request
// variant: seqtalearn:// links run the QR flow, anything else is treated as
// a portal address for interactive cookie harvesting.
func RequestForURL(url string) LoginRequest {
	if strings.HasPrefix(url, "seqtalearn://") {
		return QrSso{Deeplink: url}
	}
	return CookieHarvest{URL: url}
}
