package common

// Cookie names issued by the HTTP transport.
const (
	SessionCookieName      = "gophauth_session"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName carries the bearer access token.
const AuthorizationHeaderName = "Authorization"
