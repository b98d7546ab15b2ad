package signature

import (
	"context"
	"encoding/json"
	"net/http"
)

type verdictKey struct{}

// MaxBodyBytes caps the body the verifier buffers. Larger bodies fail
// verification.
const MaxBodyBytes = 1 << 20

// Middleware rejects requests whose signature does not verify with 401 and
// a {"ok":false,"error":"<reason>"} body. Accepted requests reach next with
// the verdict on their context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			}
			verdict := v.Verify(r)
			if !verdict.OK {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"ok":    false,
					"error": string(verdict.Reason),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), verdictKey{}, verdict)))
		})
	}
}

// VerdictFromContext returns the verdict stored by Middleware.
func VerdictFromContext(ctx context.Context) (Verdict, bool) {
	verdict, ok := ctx.Value(verdictKey{}).(Verdict)
	return verdict, ok
}
