package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorGreen       = 32
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorLightGreen  = 92
	colorLightYellow = 93
	colorCyan        = 96
)

// NbFormatter renders key=value lines, colored unless NoColor is set.
// Fields are printed in sorted order.
type NbFormatter struct {
	NoColor bool
}

func (f *NbFormatter) paint(color int, s string) string {
	if f.NoColor {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func (f *NbFormatter) pair(key string, color int, value string) string {
	return " " + f.paint(colorCyan, key) + "=" + f.paint(color, value)
}

func levelColor(level log.Level) int {
	switch level {
	case log.DebugLevel, log.TraceLevel:
		return colorGray
	case log.WarnLevel:
		return colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return colorRed
	default:
		return colorBlue
	}
}

func (f *NbFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(f.paint(colorCyan, "level") + "=" + f.paint(levelColor(entry.Level), strings.ToUpper(entry.Level.String())[:4]))
	b.WriteString(f.pair("ts", colorLightYellow, entry.Time.Format("2006-01-02 15:04:05.000")))
	if entry.HasCaller() {
		b.WriteString(f.pair("source", colorLightYellow, fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)))
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m, err := json.Marshal(entry.Data[k])
		if err != nil || len(m) == 0 {
			continue
		}
		s := string(m)
		color := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			color = colorGreen
		} else if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
			color = colorLightYellow
		}
		b.WriteString(f.pair(k, color, s))
	}
	b.WriteString(f.pair("msg", colorLightGreen, strconv.Quote(entry.Message)))

	output := strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(b.String())
	return []byte(output + "\n"), nil
}
