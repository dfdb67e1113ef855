// FILE: example/gnet/main.go
package main

import (
	"github.com/lixenwraith/seglog"
	"github.com/lixenwraith/seglog/compat"
	"github.com/panjf2000/gnet/v2"
)

// Example gnet event handler
type echoServer struct {
	gnet.BuiltinEventEngine
	log *seglog.Entry
}

func (es *echoServer) OnBoot(eng gnet.Engine) gnet.Action {
	es.log.Info("echo server booted")
	return gnet.None
}

func (es *echoServer) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Next(-1)
	if err != nil {
		es.log.Warn("read failed", c.RemoteAddr(), err)
		return gnet.Close
	}
	if _, err := c.Write(buf); err != nil {
		es.log.Error("write failed", c.RemoteAddr(), err)
		return gnet.Close
	}
	return gnet.None
}

func main() {
	logger, err := seglog.NewBuilder().
		Name("gnet-echo").
		LogDir("/var/log/gnet").
		WriteToFile(true).
		FileLevels(seglog.LevelWarn, seglog.LevelError, seglog.LevelFatal).
		SegmentWidthHours(6).
		Build()
	if err != nil {
		panic(err)
	}
	defer logger.Shutdown()
	defer logger.RecoverCrash()

	gnetAdapter := compat.NewGnetAdapter(logger)

	// Configure gnet server with the logger
	err = gnet.Run(
		&echoServer{log: logger.Tag("echo")},
		"tcp://127.0.0.1:9000",
		gnet.WithMulticore(true),
		gnet.WithLogger(gnetAdapter),
		gnet.WithReusePort(true),
	)
	if err != nil {
		logger.Fatal("gnet stopped", err)
	}
}
