package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// The API writes one JSON object per line on stdout. Collectors parse the
// stream directly, so the logger carries no prefix and no date flags.
var (
	logInit sync.Once
	logOut  *log.Logger
)

// Logger returns the process-wide line logger.
func Logger() *log.Logger {
	logInit.Do(func() {
		logOut = log.New(os.Stdout, "", 0)
	})
	return logOut
}

// LogRequest serializes entry as a single JSON log line.
func LogRequest(entry map[string]any) {
	line, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"dropped unmarshalable log entry"}`)
		return
	}
	Logger().Println(string(line))
}
