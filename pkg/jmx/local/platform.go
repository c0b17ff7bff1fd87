package local

import (
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	cload "github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/jmx-collector/pkg/jmx"
)

// 平台对象名
const (
	RuntimeMemory    = "go.runtime:type=Memory"
	RuntimeThreading = "go.runtime:type=Threading"
	RuntimeGC        = "go.runtime:type=GarbageCollector,name=go"
	RuntimeInfo      = "go.runtime:type=Runtime"
	HostOS           = "host:type=OperatingSystem"
	HostNetwork      = "host:type=Network"
	hostFileSystem   = "host:type=FileSystem,name="
)

var startTime = time.Now()

// RegisterPlatform 注册 Go 运行时与主机（gopsutil）平台对象
func RegisterPlatform(s *Server) error {
	beans := map[string]MBean{
		RuntimeMemory:    runtimeMemoryBean(),
		RuntimeThreading: runtimeThreadingBean(),
		RuntimeGC:        runtimeGCBean(),
		RuntimeInfo:      runtimeInfoBean(),
		HostOS:           hostOSBean(),
		HostNetwork:      hostNetworkBean(),
	}
	for name, b := range beans {
		if err := s.Register(name, b); err != nil {
			return err
		}
	}

	// 每个挂载点一个对象；分区读取失败时不注册
	parts, err := disk.Partitions(false)
	if err != nil {
		return nil
	}
	for _, p := range parts {
		_ = s.Register(hostFileSystem+quoteIfNeeded(p.Mountpoint), fileSystemBean(p))
	}
	return nil
}

func quoteIfNeeded(v string) string {
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ',', '=', ':', '"', '*', '?', '\n':
			b := []byte{'"'}
			for j := 0; j < len(v); j++ {
				if v[j] == '"' || v[j] == '\\' || v[j] == '*' || v[j] == '?' {
					b = append(b, '\\')
				}
				b = append(b, v[j])
			}
			return string(append(b, '"'))
		}
	}
	return v
}

func memStats() *runtime.MemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &ms
}

func usage(init, used, committed, max uint64) jmx.Composite {
	return jmx.NewComposite(map[string]jmx.Value{
		"init":      jmx.Scalar{V: int64(init)},
		"used":      jmx.Scalar{V: int64(used)},
		"committed": jmx.Scalar{V: int64(committed)},
		"max":       jmx.Scalar{V: int64(max)},
	})
}

func runtimeMemoryBean() MBean {
	return NewFuncBean("runtime.MemStats").
		Attr("HeapMemoryUsage", "CompositeData", func() (any, error) {
			ms := memStats()
			return usage(0, ms.HeapAlloc, ms.HeapSys, ms.HeapSys), nil
		}).
		Attr("NonHeapMemoryUsage", "CompositeData", func() (any, error) {
			ms := memStats()
			other := ms.StackSys + ms.MSpanSys + ms.MCacheSys + ms.BuckHashSys + ms.GCSys + ms.OtherSys
			return usage(0, ms.StackInuse+ms.MSpanInuse+ms.MCacheInuse, other, other), nil
		}).
		Attr("ObjectCount", "long", func() (any, error) {
			return int64(memStats().HeapObjects), nil
		})
}

func runtimeThreadingBean() MBean {
	return NewFuncBean("runtime").
		Attr("GoroutineCount", "int", func() (any, error) { return int64(runtime.NumGoroutine()), nil }).
		Attr("ThreadCount", "int", func() (any, error) {
			return int64(pprof.Lookup("threadcreate").Count()), nil
		}).
		Attr("MaxProcs", "int", func() (any, error) { return int64(runtime.GOMAXPROCS(0)), nil })
}

func runtimeGCBean() MBean {
	return NewFuncBean("runtime.GC").
		Attr("CollectionCount", "long", func() (any, error) { return int64(memStats().NumGC), nil }).
		Attr("CollectionTime", "long", func() (any, error) {
			return int64(memStats().PauseTotalNs / uint64(time.Millisecond)), nil
		}).
		Attr("LastGcInfo", "CompositeData", func() (any, error) {
			ms := memStats()
			last := ms.PauseNs[(ms.NumGC+255)%256]
			return map[string]any{
				"id":       int64(ms.NumGC),
				"duration": int64(last / uint64(time.Millisecond)),
				"endTime":  int64(ms.LastGC / uint64(time.Millisecond)),
			}, nil
		}).
		Attr("RecentPauses", "long[]", func() (any, error) {
			ms := memStats()
			n := int(ms.NumGC)
			if n > 8 {
				n = 8
			}
			out := make([]int64, 0, n)
			for i := 0; i < n; i++ {
				out = append(out, int64(ms.PauseNs[(int(ms.NumGC)-1-i+256)%256]))
			}
			return out, nil
		})
}

func runtimeInfoBean() MBean {
	return NewFuncBean("runtime").
		Static("VmName", "go").
		Static("VmVersion", runtime.Version()).
		Static("Arch", runtime.GOARCH).
		Attr("Uptime", "long", func() (any, error) {
			return time.Since(startTime).Milliseconds(), nil
		}).
		Attr("StartTime", "long", func() (any, error) { return startTime.UnixMilli(), nil })
}

func hostOSBean() MBean {
	return NewFuncBean("gopsutil").
		Attr("AvailableProcessors", "int", func() (any, error) {
			n, err := cpu.Counts(true)
			return int64(n), err
		}).
		Attr("SystemLoadAverage", "double", func() (any, error) {
			l, err := cload.Avg()
			if err != nil {
				return nil, err
			}
			return l.Load1, nil
		}).
		Attr("LoadAverage", "CompositeData", func() (any, error) {
			l, err := cload.Avg()
			if err != nil {
				return nil, err
			}
			return map[string]any{"load1": l.Load1, "load5": l.Load5, "load15": l.Load15}, nil
		}).
		Attr("SystemCpuLoad", "double", func() (any, error) {
			p, err := cpu.Percent(0, false)
			if err != nil || len(p) == 0 {
				return nil, err
			}
			return p[0] / 100, nil
		}).
		Attr("TotalPhysicalMemorySize", "long", func() (any, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return nil, err
			}
			return int64(vm.Total), nil
		}).
		Attr("FreePhysicalMemorySize", "long", func() (any, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return nil, err
			}
			return int64(vm.Available), nil
		}).
		Attr("Name", "String", func() (any, error) {
			hi, err := host.Info()
			if err != nil {
				return nil, err
			}
			return hi.OS, nil
		}).
		Attr("Version", "String", func() (any, error) {
			hi, err := host.Info()
			if err != nil {
				return nil, err
			}
			return hi.PlatformVersion, nil
		})
}

func hostNetworkBean() MBean {
	return NewFuncBean("gopsutil.net").
		Attr("InterfaceCounters", "TabularData", func() (any, error) {
			counters, err := gnet.IOCounters(true)
			if err != nil {
				return nil, err
			}
			t := jmx.Tabular{IndexNames: []string{"name"}}
			for _, c := range counters {
				t.Rows = append(t.Rows, jmx.Row{
					Index: []string{c.Name},
					Columns: []jmx.Field{
						{Name: "bytesRecv", Value: jmx.Scalar{V: int64(c.BytesRecv)}},
						{Name: "bytesSent", Value: jmx.Scalar{V: int64(c.BytesSent)}},
						{Name: "errin", Value: jmx.Scalar{V: int64(c.Errin)}},
						{Name: "errout", Value: jmx.Scalar{V: int64(c.Errout)}},
						{Name: "name", Value: jmx.Scalar{V: c.Name}},
					},
				})
			}
			return t, nil
		})
}

func fileSystemBean(p disk.PartitionStat) MBean {
	return NewFuncBean("gopsutil.disk").
		Static("Device", p.Device).
		Static("Type", p.Fstype).
		Attr("Usage", "CompositeData", func() (any, error) {
			u, err := disk.Usage(p.Mountpoint)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"total":       int64(u.Total),
				"used":        int64(u.Used),
				"free":        int64(u.Free),
				"usedPercent": u.UsedPercent,
			}, nil
		})
}
