package globals

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const msg = "echo server %s:%s status=%d latency=%s host=%s ip=%s"

// long identifiers in query strings clutter the log
var longParam = regexp.MustCompile(`=([^&]{48})[^&]+`)

// ConfigureLogging sets the logger level and, if 'logFile' is not the empty string,
// directs logging to that file. If the file can't be opened logging stays on stderr
// and the error is logged.
func ConfigureLogging(level string, logFile string) {
	log.SetLevel(xlatLogLevel(level))
	log.SetFormatter(&log.TextFormatter{})
	if logFile == "" {
		log.SetOutput(os.Stderr)
		return
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Errorf("unable to open log file %s, logging to stderr: %s", logFile, err)
		return
	}
	log.SetOutput(f)
}

// xlatLogLevel translates the passed 'level' string to a logger const
func xlatLogLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "TRACE":
		return log.TraceLevel
	}
	return log.FatalLevel
}

// GetEchoLoggingFunc gets the API server logging function
func GetEchoLoggingFunc() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			// don't log the health check because it clutters the log and it is intended to
			// be used by Kubernetes anyway so doesn't need to be logged
			if req.URL.Path == "/health" {
				return nil
			}

			uri := longParam.ReplaceAllString(req.RequestURI, "=$1...")

			flds := make([]interface{}, 6)
			flds[0] = req.Method
			flds[1] = uri
			flds[2] = res.Status
			flds[3] = time.Since(start)
			flds[4] = req.Host
			flds[5] = c.RealIP()

			switch {
			case res.Status >= 500:
				log.Errorf(msg, flds...)
			case res.Status >= 400:
				log.Warnf(msg, flds...)
			default:
				log.Infof(msg, flds...)
			}
			return nil
		}
	}
}
