package common

// AuthorizationScheme is the scheme expected in the Authorization header
// carrying an access token.
const AuthorizationScheme = "Bearer"

// TokenBytes is the amount of random bytes behind every opaque token
// (refresh and password reset). Tokens are hex encoded, so their string
// form is twice as long.
const TokenBytes = 32
