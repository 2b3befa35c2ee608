package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const (
	rateLimitedMessage = "too many requests, try again later"
	maxPeekBytes       = 64 << 10
)

// credentialPeek covers the credential fields of login, signup, lookup and OTP bodies.
type credentialPeek struct {
	Value  string `json:"value"`
	Target string `json:"target"`
	Region string `json:"region"`
	Device *struct {
		UniqueID string `json:"uniqueId"`
	} `json:"device"`
}

// RateLimit counts each request against policy before calling next.
//
// Login-keyed policies read the credential from the JSON body, which is restored for
// next. Denials get 429 with Retry-After unless the path is a configured soft-fail
// route, in which case a 200 envelope with only a message is written. Limiter backend
// failures surface as server errors.
func RateLimit(engine *goIdentity.Engine, policy string) func(http.Handler) http.Handler {
	var loginKeyed bool
	if engine != nil {
		p, _ := engine.Policy(policy)
		loginKeyed = p.LoginKeyed
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, goIdentity.ErrEngineNotReady)
				return
			}

			ctx := r.Context()
			in := goIdentity.KeyInput{IP: goIdentity.ClientIPFromContext(ctx)}
			if in.IP == "" {
				in.IP = clientIP(r, false)
			}
			if subject, ok := goIdentity.SubjectIDFromContext(ctx); ok {
				in.SubjectID = subject
			}
			if loginKeyed {
				peekCredential(r, &in)
			}

			decision, err := engine.RateLimit(ctx, policy, in)
			switch {
			case err == nil:
				if !decision.Bypassed {
					writeRateHeaders(w, decision)
				}
				next.ServeHTTP(w, r)
			case errors.Is(err, goIdentity.ErrRateLimited):
				if engine.SoftFailRoute(r.URL.Path) {
					WriteJSON(w, http.StatusOK, Envelope{Message: rateLimitedMessage})
					return
				}
				writeRateHeaders(w, decision)
				w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(decision)))
				WriteError(w, err)
			default:
				WriteError(w, err)
			}
		})
	}
}

func peekCredential(r *http.Request, in *goIdentity.KeyInput) {
	if r.Body == nil || r.Body == http.NoBody {
		return
	}
	body := r.Body
	raw, err := io.ReadAll(io.LimitReader(body, maxPeekBytes))
	r.Body = peekedBody{Reader: io.MultiReader(bytes.NewReader(raw), body), Closer: body}
	if err != nil || len(raw) == 0 {
		return
	}

	var peek credentialPeek
	if json.Unmarshal(raw, &peek) != nil {
		return
	}
	in.Credential = peek.Value
	if in.Credential == "" {
		in.Credential = peek.Target
	}
	in.Region = peek.Region
	if peek.Device != nil {
		in.DeviceID = peek.Device.UniqueID
	}
}

// peekedBody replays the peeked prefix ahead of the unread rest of the original body.
type peekedBody struct {
	io.Reader
	io.Closer
}

func writeRateHeaders(w http.ResponseWriter, d goIdentity.RateDecision) {
	if d.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d)))
}

func ceilSeconds(d goIdentity.RateDecision) int {
	secs := int(math.Ceil(d.ResetAfter.Seconds()))
	return max(secs, 1)
}
