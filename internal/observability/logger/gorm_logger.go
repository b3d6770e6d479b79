package logger

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 500 * time.Millisecond

// QueryLogConfig configures the SQL logger installed on the gorm handle.
type QueryLogConfig struct {
	// Level is one of silent, error, warn or info. Anything else means warn.
	Level         string
	SlowThreshold time.Duration
}

// QueryLogger writes gorm statements to the context logger, so that queries
// issued during a run carry its run, request and bill cycle fields. Record
// not found is expected on guard and lookup reads and is never logged.
type QueryLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewQueryLogger(cfg QueryLogConfig) *QueryLogger {
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	return &QueryLogger{level: ParseQueryLevel(cfg.Level), slow: slow}
}

// ParseQueryLevel maps a config string to a gorm log level.
func ParseQueryLevel(raw string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "silent", "off":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zap.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zap.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zap.ErrorLevel, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, threshold gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < threshold {
		return
	}
	fields := []zap.Field{zap.String("component", "sql")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed statements at error, slow ones at warn and, at info
// level, every statement at debug.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var level zapcore.Level
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		if l.level < gormlogger.Error {
			return
		}
		level = zap.ErrorLevel
	case elapsed > l.slow:
		if l.level < gormlogger.Warn {
			return
		}
		level = zap.WarnLevel
	case l.level >= gormlogger.Info:
		level = zap.DebugLevel
	default:
		return
	}

	log := FromContext(ctx)
	ce := log.Check(level, "sql.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	stmt := DescribeStatement(sql)
	fields := []zap.Field{
		zap.String("component", "sql"),
		zap.String("operation", stmt.Operation),
		zap.String("table", stmt.Table),
		zap.String("side", stmt.Side()),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("sql", strings.TrimSpace(sql)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if level == zap.WarnLevel {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter drops bound values. Customer and contract ids never reach the
// SQL log line.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

// Statement is the coarse shape of a SQL string used for log fields.
type Statement struct {
	Operation string
	Table     string
}

// Side reports which schema the statement touches: dyn_disc tables owned by
// this service, or the billing tables it reads and posts OCCs to.
func (s Statement) Side() string {
	switch {
	case s.Table == "":
		return "unknown"
	case strings.HasPrefix(s.Table, "dyn_disc"):
		return "dyn_disc"
	default:
		return "billing"
	}
}

var tablePattern = regexp.MustCompile(`(?i)\b(?:from|into|update|join|call)\s+["` + "`" + `]?([a-zA-Z0-9_.]+)`)

// DescribeStatement extracts the verb and the first table of sql.
func DescribeStatement(sql string) Statement {
	stmt := Statement{Operation: "UNKNOWN"}
scan:
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch token = strings.Trim(token, "();"); token {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "CALL", "SAVEPOINT", "RELEASE", "ROLLBACK":
			stmt.Operation = token
			break scan
		}
	}
	if m := tablePattern.FindStringSubmatch(sql); len(m) == 2 {
		table := strings.ToLower(m[1])
		if i := strings.LastIndexByte(table, '.'); i >= 0 {
			table = table[i+1:]
		}
		stmt.Table = table
	}
	return stmt
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
