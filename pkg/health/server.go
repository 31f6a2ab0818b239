package health

import (
	"fmt"
	"log/slog"

	"github.com/valyala/fasthttp"
)

const liveness = "Heartbeat check - service is running."

// Serve exposes the unauthenticated liveness endpoint used by external
// uptime probes. It blocks until the listener fails.
func Serve(port int) error {
	handler := func(ctx *fasthttp.RequestCtx) {
		if !ctx.IsGet() || string(ctx.Path()) != "/" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetContentType("text/plain; charset=utf-8")
		fmt.Fprint(ctx, liveness)
	}

	addr := fmt.Sprintf(":%d", port)
	slog.Info("health", "listening", addr)
	return fasthttp.ListenAndServe(addr, handler)
}
