// FILE: muxd/src/internal/engine/options.go
package engine

import (
	"runtime"
	"time"

	"muxd/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
	"github.com/spf13/cast"
)

const (
	defaultBufferOutputSize = 2 * 1024 * 1024
	defaultMaxWait          = 3 * time.Second
)

// options is the typed view of the engine settings
type options struct {
	workerNum     int
	taskWorkerNum int
	dispatchMode  int
	reusePort     bool
	tcpNoDelay    bool
	socketBuffer  int
	outputBuffer  int
	maxPackage    int
	maxConn       int64

	heartbeatCheck time.Duration
	heartbeatIdle  time.Duration
	maxWait        time.Duration

	pidFile string
	logFile string
	daemon  bool
}

// parseOptions reads settings leniently; unparsable values fall back to defaults
func parseOptions(s config.Settings, mode config.Mode) options {
	o := options{
		workerNum:    runtime.NumCPU(),
		dispatchMode: 2,
		tcpNoDelay:   true,
		outputBuffer: defaultBufferOutputSize,
		maxWait:      defaultMaxWait,
	}

	// reactor_num only sizes the loops when worker_num is absent
	if v, ok := s[config.KeyReactorNum]; ok {
		if n := cast.ToInt(v); n > 0 {
			o.workerNum = n
		}
	}
	if v, ok := s[config.KeyWorkerNum]; ok {
		if n := cast.ToInt(v); n > 0 {
			o.workerNum = n
		}
	}
	if mode == config.ModeBase {
		o.workerNum = 1
	}

	if v, ok := s[config.KeyTaskWorkerNum]; ok {
		o.taskWorkerNum = max(cast.ToInt(v), 0)
	}
	if v, ok := s[config.KeyDispatchMode]; ok {
		o.dispatchMode = cast.ToInt(v)
	}
	if v, ok := s[config.KeyEnableReusePort]; ok {
		o.reusePort = cast.ToBool(v)
	}
	if v, ok := s[config.KeyOpenTCPNoDelay]; ok {
		o.tcpNoDelay = cast.ToBool(v)
	}
	if v, ok := s[config.KeySocketBufferSize]; ok {
		o.socketBuffer = max(cast.ToInt(v), 0)
	}
	if v, ok := s[config.KeyBufferOutputSize]; ok {
		if n := cast.ToInt(v); n > 0 {
			o.outputBuffer = n
		}
	}
	if v, ok := s[config.KeyPackageMaxLength]; ok {
		o.maxPackage = max(cast.ToInt(v), 0)
	}

	for _, k := range []string{config.KeyMaxConn, config.KeyMaxConnection} {
		if v, ok := s[k]; ok {
			o.maxConn = max(cast.ToInt64(v), 0)
		}
	}

	o.heartbeatCheck = seconds(s[config.KeyHeartbeatCheckInterval])
	o.heartbeatIdle = seconds(s[config.KeyHeartbeatIdleTime])
	if o.heartbeatCheck > 0 && o.heartbeatIdle == 0 {
		o.heartbeatIdle = 2 * o.heartbeatCheck
	}
	if d := seconds(s[config.KeyMaxWaitTime]); d > 0 {
		o.maxWait = d
	}

	o.pidFile = cast.ToString(s[config.KeyPidFile])
	o.logFile = cast.ToString(s[config.KeyLogFile])
	o.daemon = cast.ToBool(s[config.KeyDaemonize])

	return o
}

// seconds reads a duration given in (possibly fractional) seconds
func seconds(v any) time.Duration {
	if v == nil {
		return 0
	}
	f := cast.ToFloat64(v)
	if f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func (o options) loadBalancing() gnet.LoadBalancing {
	switch o.dispatchMode {
	case 1:
		return gnet.RoundRobin
	case 3:
		return gnet.LeastConnections
	case 2, 4, 5:
		// Fixed, ip and uid modes pin a peer to one loop
		return gnet.SourceAddrHash
	default:
		return gnet.RoundRobin
	}
}

func (o options) gnetOptions(logger *log.Logger) []gnet.Option {
	opts := []gnet.Option{
		gnet.WithLogger(compat.NewGnetAdapter(logger)),
		gnet.WithMulticore(o.workerNum > 1),
		gnet.WithNumEventLoop(o.workerNum),
		gnet.WithLoadBalancing(o.loadBalancing()),
		gnet.WithReusePort(o.reusePort),
		gnet.WithWriteBufferCap(o.outputBuffer),
		gnet.WithTicker(o.heartbeatCheck > 0),
	}

	if o.tcpNoDelay {
		opts = append(opts, gnet.WithTCPNoDelay(gnet.TCPNoDelay))
	} else {
		opts = append(opts, gnet.WithTCPNoDelay(gnet.TCPDelay))
	}
	if o.socketBuffer > 0 {
		opts = append(opts,
			gnet.WithSocketRecvBuffer(o.socketBuffer),
			gnet.WithSocketSendBuffer(o.socketBuffer))
	}
	if o.maxPackage > 0 {
		opts = append(opts, gnet.WithReadBufferCap(o.maxPackage))
	}
	if o.heartbeatIdle > 0 {
		opts = append(opts, gnet.WithTCPKeepAlive(o.heartbeatIdle))
	}

	return opts
}
