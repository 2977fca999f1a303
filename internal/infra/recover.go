package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f, restarting it in the same goroutine after a panic.
// A negative maxPanics restarts forever, reaching zero terminates the process.
func GoRecoverable(maxPanics int, id string, f func()) {
	for {
		panicked := runRecovered(id, f)
		if !panicked {
			return
		}
		if maxPanics == 0 {
			log.Fatalf(`panics limit exceeded for job "%s", exiting`, id)
		}
		if maxPanics > 0 {
			maxPanics--
		}
		log.WithFields(log.Fields{"job": id, "panics_left": maxPanics}).Debug("recovering job")
	}
}

func runRecovered(id string, f func()) (panicked bool) {
	defer func() {
		if err := recover(); err != nil {
			log.WithFields(log.Fields{
				"job":    id,
				"panic":  fmt.Sprint(err),
				"source": identifyPanic(),
			}).Error("job panicked")
			panicked = true
		}
	}()
	f()
	return false
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(4, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}
	return fmt.Sprintf("pc:%x", pc)
}
