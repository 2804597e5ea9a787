// Command debra-bench drives a lock-free stack with a configurable number
// of goroutines doing push/pop churn and logs the total operation count and
// throughput. It exists purely to exercise pkg/debra and pkg/lfstack under
// load; it is not part of the reclamation scheme itself.
package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mjm918/debra/pkg/debra"
	"github.com/mjm918/debra/pkg/lfstack"
)

func main() {
	var (
		goroutines = pflag.IntP("goroutines", "g", 8, "number of concurrent push/pop goroutines")
		duration   = pflag.DurationP("duration", "d", 2*time.Second, "how long to run the benchmark")
		initial    = pflag.IntP("initial", "i", 1000, "items pushed per goroutine before the timed run starts")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug-level logging")
	)
	pflag.Parse()

	logCfg := zap.NewProductionConfig()
	if *verbose {
		logCfg = zap.NewDevelopmentConfig()
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "debra-bench: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	domain := debra.NewDomain()
	stack := lfstack.New[int](domain)

	seed := debra.NewLocal(domain)
	for g := 0; g < *goroutines; g++ {
		for i := 0; i < *initial; i++ {
			stack.Push(seed, i)
		}
	}
	seed.Close()

	logger.Info("starting run",
		zap.Int("goroutines", *goroutines),
		zap.Duration("duration", *duration),
		zap.Int("initial_per_goroutine", *initial),
	)

	var ops int64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(*goroutines)
	for g := 0; g < *goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			local := debra.NewLocal(domain)
			defer local.Close()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if v, ok := stack.Pop(local); ok {
					stack.Push(local, v+1)
				} else {
					stack.Push(local, id)
				}
				atomic.AddInt64(&ops, 1)
			}
		}(g)
	}

	time.Sleep(*duration)
	close(stop)
	wg.Wait()

	total := atomic.LoadInt64(&ops)
	logger.Info("run complete",
		zap.Int64("total_ops", total),
		zap.Float64("ops_per_sec", float64(total)/(*duration).Seconds()),
	)
}
