// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relaynet/rewards/api/rewards"
	"github.com/relaynet/rewards/engine"
	"github.com/relaynet/rewards/log"
	"github.com/relaynet/rewards/metrics"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	EnableReqLogger bool
	EnableMetrics   bool
}

// New returns the api router.
func New(eng *engine.Engine, opts Options) http.HandlerFunc {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	rewards.New(eng).
		Mount(router, "/rewards")

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
		if mh := metrics.HTTPHandler(); mh != nil {
			router.Path("/metrics").Handler(mh)
		}
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type", rewards.CallerHeader}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE"}),
	)(handler)

	if opts.EnableReqLogger {
		handler = RequestLoggerHandler(handler, logger)
	}

	return handler.ServeHTTP
}
