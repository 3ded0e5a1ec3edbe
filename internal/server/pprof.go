package server

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartPprofServer exposes the pprof endpoints on their own listener so the
// profiling surface never shares a port with the public API. Keep it bound
// to an address that is not reachable from outside the deployment.
func StartPprofServer(addr string, logger *zap.Logger) {
	router := gin.New()
	pprof.Register(router)

	go func() {
		logger.Info("pprof listening", zap.String("addr", addr))
		if err := router.Run(addr); err != nil {
			logger.Error("pprof server stopped", zap.Error(err))
		}
	}()
}
