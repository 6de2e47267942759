// Package httplookup decodes tokens found in chi URL parameters before the
// handler runs. A token that does not decode is answered with 404, exactly
// as if the object did not exist.
package httplookup

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/paraglidehq/enclookup"
)

// DefaultParam is the URL parameter decoded when Decoder.Param is empty.
const DefaultParam = "id"

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "enclookup",
	Subsystem: "http",
	Name:      "lookups_total",
	Help:      "Number of URL lookup tokens decoded",
}, []string{
	"param",
	"result",
})

type ctxKey struct{}

// Decoder is chi middleware replacing a token URL parameter with the
// integer it encodes.
type Decoder struct {
	Cipher *enclookup.Cipher
	Param  string
}

func (d Decoder) param() string {
	if d.Param == "" {
		return DefaultParam
	}
	return d.Param
}

// Middleware decodes the parameter and stores the result in the request
// context, retrievable with IDFromContext. Requests without the parameter
// pass through untouched.
func (d Decoder) Middleware(next http.Handler) http.Handler {
	param := d.param()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := chi.URLParam(r, param)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := d.Cipher.Decode(tok)
		if err != nil {
			lookups.WithLabelValues(param, "malformed").Inc()
			// Neither the token nor the error carries the secret.
			zerolog.Ctx(r.Context()).Debug().Err(err).Str("param", param).Msg("Rejected lookup token")
			NotFound(w)
			return
		}
		lookups.WithLabelValues(param, "ok").Inc()

		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// WithID returns a copy of ctx carrying a decoded lookup id.
func WithID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the id stored by Middleware.
func IDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

// NotFound writes the 404 body used for undecodable and missing lookups.
func NotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail":"Not found."}`))
}
