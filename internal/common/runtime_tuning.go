package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Runtime profiles by server size. The resolver is fan-out I/O bound,
// not allocation bound, so GOGC stays closer to default than a pure
// in-memory router would run.
const (
	smallServerGOGC     = 200
	smallServerMemLimit = 2 * 1024 * 1024 * 1024

	largeServerGOGC     = 400
	largeServerMemLimit = 8 * 1024 * 1024 * 1024
)

// InitRuntime applies GOGC/GOMAXPROCS/GOMEMLIMIT defaults sized to the
// host. Environment variables GOGC, GOMAXPROCS and GOMEMLIMIT always
// take precedence.
func InitRuntime() {
	gogc, memLimit := smallServerGOGC, int64(smallServerMemLimit)
	if runtime.NumCPU() > 4 {
		gogc, memLimit = largeServerGOGC, int64(largeServerMemLimit)
	}

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(gogc)
		log.Info().Int("GOGC", gogc).Msg("[runtime] set GOGC")
	}
	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(memLimit)
		log.Info().Int64("GOMEMLIMIT_bytes", memLimit).Msg("[runtime] set memory limit")
	}

	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Str("go_version", runtime.Version()).
		Msg("[runtime] runtime settings")
}
