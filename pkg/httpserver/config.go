package httpserver

import "time"

// Config is read from HTTP_* variables. Zero values keep the defaults of New.
type Config struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"65536"`
}

// NewFromConfig creates a Server from cfg. Options in opts are applied last.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	var fromCfg []Option
	add := func(set bool, opt func() Option) {
		if set {
			fromCfg = append(fromCfg, opt())
		}
	}
	add(cfg.Addr != "", func() Option { return WithAddr(cfg.Addr) })
	add(cfg.ReadTimeout > 0, func() Option { return WithReadTimeout(cfg.ReadTimeout) })
	add(cfg.ReadHeaderTimeout > 0, func() Option { return WithReadHeaderTimeout(cfg.ReadHeaderTimeout) })
	add(cfg.WriteTimeout > 0, func() Option { return WithWriteTimeout(cfg.WriteTimeout) })
	add(cfg.IdleTimeout > 0, func() Option { return WithIdleTimeout(cfg.IdleTimeout) })
	add(cfg.ShutdownTimeout > 0, func() Option { return WithShutdownTimeout(cfg.ShutdownTimeout) })
	add(cfg.MaxHeaderBytes > 0, func() Option { return WithMaxHeaderBytes(cfg.MaxHeaderBytes) })
	return New(append(fromCfg, opts...)...)
}
