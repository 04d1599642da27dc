package publog

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/metrics"
)

// NewServer returns the HTTP handler of a public log server backed by mem.
func NewServer(mem *Memory, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), RequestMetrics())

	s := &server{mem: mem, log: logger}
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.PUT("/witness/:id", s.putWitness)
	r.GET("/witness/:id", s.getWitness)
	r.POST("/events", s.postEvent)
	r.GET("/events/:id", s.getEvents)
	return r
}

type server struct {
	mem *Memory
	log zerolog.Logger
}

func (s *server) putWitness(c *gin.Context) {
	id, ok := voucherParam(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	rec, err := UnmarshalRecord(body)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if rec.VoucherID != id {
		c.String(http.StatusBadRequest, "voucher id does not match path")
		return
	}
	if err := s.mem.Publish(c.Request.Context(), rec); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info().Str("voucher", crypto.VoucherFingerprint(id)).Msg("witness published")
	c.Status(http.StatusCreated)
}

func (s *server) getWitness(c *gin.Context) {
	id, ok := voucherParam(c)
	if !ok {
		return
	}
	raw, err := s.mem.FetchRaw(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, ContentType, raw)
}

func (s *server) postEvent(c *gin.Context) {
	var ev domain.AuditEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if err := s.mem.Append(c.Request.Context(), ev); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *server) getEvents(c *gin.Context) {
	id, ok := voucherParam(c)
	if !ok {
		return
	}
	evs, err := s.mem.Events(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if evs == nil {
		evs = []domain.AuditEvent{}
	}
	c.JSON(http.StatusOK, evs)
}

func (s *server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error().Err(err).Msg("public log request failed")
	}
	c.String(status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.ErrNotFound.Is(err):
		return http.StatusNotFound
	case errors.ErrDuplicate.Is(err):
		return http.StatusConflict
	case errors.ErrInvalidSignature.Is(err):
		return http.StatusForbidden
	case errors.ErrInvalidInput.Is(err):
		return http.StatusBadRequest
	case errors.ErrCancelled.Is(err):
		return 499
	}
	return http.StatusInternalServerError
}

func voucherParam(c *gin.Context) (domain.VoucherID, bool) {
	id, err := domain.ParseVoucherID(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "bad voucher id")
		return domain.VoucherID{}, false
	}
	return id, true
}

// RequestLogger logs one line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

// RequestMetrics records request counts and latency.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}

// routePath prefers the route template so ids do not explode label
// cardinality.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// Serve runs h on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info().Str("addr", addr).Msg("public log listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
