package logging

import (
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// ANSI escapes used by the console sink.
const (
	colorRed    = "\x1b[91m"
	colorGreen  = "\x1b[92m"
	colorYellow = "\x1b[93m"
	colorReset  = "\x1b[0m"
)

// timeLayout renders record timestamps as MM/DD HH:MM:SS.
const timeLayout = "01/02 15:04:05"

var linePool = buffer.NewPool()

// recordStyle selects the line layout of a recordEncoder.
type recordStyle uint8

const (
	// consoleStyle: "\x1b[92m[ts name]: \x1b[0m<tag>message".
	consoleStyle recordStyle = iota
	// fileStyle: "[ts] name LEVEL: message", never coloured.
	fileStyle
)

// recordEncoder lays out one record per line. The embedded JSON encoder holds
// fields accumulated through With; it renders nothing but the field object, which
// is appended after the message when non-empty.
type recordEncoder struct {
	zapcore.Encoder
	style recordStyle
}

func newRecordEncoder(style recordStyle) *recordEncoder {
	return &recordEncoder{
		Encoder: zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			SkipLineEnding: true,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		}),
		style: style,
	}
}

// Clone implements zapcore.Encoder.
func (e *recordEncoder) Clone() zapcore.Encoder {
	return &recordEncoder{Encoder: e.Encoder.Clone(), style: e.style}
}

// EncodeEntry implements zapcore.Encoder.
func (e *recordEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	extra, err := e.Encoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return nil, err
	}
	defer extra.Free()

	line := linePool.Get()
	switch e.style {
	case fileStyle:
		line.AppendByte('[')
		line.AppendTime(ent.Time, timeLayout)
		line.AppendString("] ")
		line.AppendString(ent.LoggerName)
		line.AppendByte(' ')
		line.AppendString(levelName(ent.Level))
		line.AppendString(": ")
	default:
		line.AppendString(colorGreen)
		line.AppendByte('[')
		line.AppendTime(ent.Time, timeLayout)
		line.AppendByte(' ')
		line.AppendString(ent.LoggerName)
		line.AppendString("]: ")
		line.AppendString(colorReset)
		line.AppendString(severityTag(ent.Level))
	}
	line.AppendString(ent.Message)
	// "{}" means no fields.
	if extra.Len() > 2 {
		line.AppendByte(' ')
		line.AppendBytes(extra.Bytes())
	}
	line.AppendByte('\n')
	return line, nil
}

// severityTag returns the coloured prefix the console sink puts before the
// message of warnings and errors.
func severityTag(lvl zapcore.Level) string {
	switch {
	case lvl == zapcore.WarnLevel:
		return colorYellow + "WARNING" + colorReset + " "
	case lvl >= zapcore.ErrorLevel:
		return colorRed + "ERROR" + colorReset + " "
	default:
		return ""
	}
}
