package logging

// Level is the severity of a log record. Lower values are more severe.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the lowercase name of the level
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ParseLevel converts a level name to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch s {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// ANSI color codes for console output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (l Level) color() string {
	switch l {
	case LevelError:
		return colorRed
	case LevelWarn:
		return colorYellow
	case LevelInfo:
		return colorCyan
	case LevelDebug:
		return colorGray
	default:
		return colorReset
	}
}
