package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// BackendLog is the logging backend used to create all subsystem loggers.
var BackendLog = NewBackend()

var (
	subsystemsMutex sync.Mutex
	subsystems      = make(map[string]*Logger)
)

// RegisterSubSystem returns the logger for the given subsystem tag, creating
// it on the backend if it was not registered before. It is intended to be
// called from package-level `log` variable initializations.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	log, ok := subsystems[subsystem]
	if !ok {
		log = BackendLog.Logger(subsystem)
		subsystems[subsystem] = log
	}
	return log
}

// InitLog attaches log file and error log file to the backend log and starts
// it.
func InitLog(logFile, errLogFile string) error {
	err := BackendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		return errors.Errorf("Error adding log file %s as log rotator "+
			"for level %s: %s", logFile, LevelTrace, err)
	}
	err = BackendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		return errors.Errorf("Error adding log file %s as log rotator "+
			"for level %s: %s", errLogFile, LevelWarn, err)
	}
	err = BackendLog.AddLogWriter(&stdoutWriter{}, LevelInfo)
	if err != nil {
		return errors.Errorf("Error adding stdout to the loggerfor "+
			"level %s: %s", LevelInfo, err)
	}
	return BackendLog.Run()
}

// SetLogLevel sets the logging level for the provided subsystem. An error is
// returned when the subsystem is not registered or the level is invalid.
func SetLogLevel(subsystemID string, logLevel string) error {
	level, ok := LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("invalid log level %s", logLevel)
	}

	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	log, ok := subsystems[subsystemID]
	if !ok {
		return errors.Errorf("unknown subsystem %s", subsystemID)
	}
	log.SetLevel(level)
	return nil
}

// SetLogLevels sets the log level for all registered subsystems.
func SetLogLevels(logLevel string) error {
	level, ok := LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("invalid log level %s", logLevel)
	}

	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	for _, log := range subsystems {
		log.SetLevel(level)
	}
	return nil
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func SupportedSubsystems() []string {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	subsystemNames := make([]string, 0, len(subsystems))
	for subsystemName := range subsystems {
		subsystemNames = append(subsystemNames, subsystemName)
	}
	sort.Strings(subsystemNames)
	return subsystemNames
}

// ParseAndSetLogLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
//
// The debug level can either be a single level applied to all subsystems, or
// a comma separated list of subsystem=level pairs.
func ParseAndSetLogLevels(logLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(logLevel, ",") && !strings.Contains(logLevel, "=") {
		// Validate debug log level.
		if _, ok := LevelFromString(logLevel); !ok {
			return errors.Errorf("the specified debug level [%s] "+
				"is invalid", logLevel)
		}
		return SetLogLevels(logLevel)
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(logLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%s]", logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsystemID, logLevel := fields[0], fields[1]

		err := SetLogLevel(subsystemID, logLevel)
		if err != nil {
			return err
		}
	}
	return nil
}

// stdoutWriter writes log entries to standard output. Close is a no-op since
// closing standard output would swallow any output written during shutdown.
type stdoutWriter struct{}

func (w *stdoutWriter) Write(p []byte) (n int, err error) {
	return fmt.Print(string(p))
}

func (w *stdoutWriter) Close() error {
	return nil
}
