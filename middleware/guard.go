package middleware

import (
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Guard admits only requests carrying a valid access token in the
// Authorization header. The token subject is stored with
// [goIdentity.WithSubjectID] so later rate limits key on the identity.
func Guard(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := authenticate(engine, r)
			if !ok {
				WriteError(w, goIdentity.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(goIdentity.WithSubjectID(r.Context(), subject)))
		})
	}
}

func authenticate(engine *goIdentity.Engine, r *http.Request) (string, bool) {
	if engine == nil {
		return "", false
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", false
	}
	subject, err := engine.SubjectFromAccessToken(token)
	return subject, err == nil
}

// bearerToken extracts the credential of an RFC 6750 header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
