package middleware

import (
	"time"

	"github.com/suika-web/suika/pkg/common"
	"github.com/suika-web/suika/pkg/metrics"
)

// Metrics is a middleware that records every request on collector once the
// downstream stages return. Requests are labelled with the matched route
// pattern, so it should sit before the router.
func Metrics(collector *metrics.Collector) Middleware {
	return Func(func(req *common.Request, res *common.Response, next *common.Next) error {
		end := collector.Begin()
		defer end()
		start := time.Now()

		err := next.Proceed(req, res)

		collector.Observe(metrics.Observation{
			Method:   req.Method(),
			Route:    req.RoutePattern(),
			Status:   res.Status(),
			Duration: time.Since(start),
			Bytes:    res.Len(),
			Err:      err,
		})
		return err
	})
}
