// Package log 提供 chainnet 统一日志接口
//
// 基于 zap 封装，提供简洁的键值对日志 API。
// 文件输出由 lumberjack 负责滚动。
package log

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 默认 logger
var defaultLogger atomic.Pointer[zap.Logger]

func init() {
	defaultLogger.Store(newCore(zapcore.InfoLevel, "console", zapcore.Lock(os.Stderr)))
}

// Config 日志配置
type Config struct {
	// Level 日志级别：debug, info, warn, error
	Level string `json:"level"`

	// Format 输出格式：console 或 json
	Format string `json:"format"`

	// File 日志文件路径，为空时输出到 stderr
	File string `json:"file,omitempty"`

	// MaxSizeMB 单个文件最大尺寸
	MaxSizeMB int `json:"max_size_mb,omitempty"`

	// MaxBackups 保留的历史文件数
	MaxBackups int `json:"max_backups,omitempty"`

	// MaxAgeDays 历史文件保留天数
	MaxAgeDays int `json:"max_age_days,omitempty"`
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}
}

// ParseLevel 解析日志级别
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log: invalid level %q", s)
	}
	return lvl, nil
}

// Validate 校验配置
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log: invalid format %q", c.Format)
	}
	return nil
}

// Setup 按配置重建默认 logger
//
// 返回的 Logger 可用于 fx 事件日志等需要 *zap.Logger 的场景。
func Setup(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := ParseLevel(cfg.Level)

	var ws zapcore.WriteSyncer
	if cfg.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	l := newCore(lvl, cfg.Format, ws)
	SetDefault(l)
	return l, nil
}

func newCore(lvl zapcore.Level, format string, ws zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, ws, lvl))
}

// SetDefault 设置默认 logger
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger.Store(l)
}

// Default 返回默认 logger
func Default() *zap.Logger {
	return defaultLogger.Load()
}

// Sync 刷新缓冲
func Sync() error {
	return Default().Sync()
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从默认 logger 获取最新的 core，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var logger = log.Logger("core/addrbook")  // 返回 *LazyLogger
//	logger.Info("hello", "key", value)
type LazyLogger struct {
	component string

	// cached 按默认 logger 缓存的 SugaredLogger
	cached atomic.Pointer[boundSugar]
}

type boundSugar struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

func (l *LazyLogger) sugar() *zap.SugaredLogger {
	base := Default()
	if c := l.cached.Load(); c != nil && c.base == base {
		return c.sugar
	}
	s := base.Sugar().With("component", l.component)
	l.cached.Store(&boundSugar{base: base, sugar: s})
	return s
}

func enabled(lvl zapcore.Level) bool {
	return Default().Core().Enabled(lvl)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	if !enabled(zapcore.DebugLevel) {
		return
	}
	l.sugar().Debugw(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	if !enabled(zapcore.InfoLevel) {
		return
	}
	l.sugar().Infow(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.sugar().Warnw(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.sugar().Errorw(msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *zap.SugaredLogger {
	return l.sugar().With(args...)
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// ============================================================================
//                              快捷方法
// ============================================================================

// Debug 输出 Debug 级别日志
func Debug(msg string, args ...any) {
	Default().Sugar().Debugw(msg, args...)
}

// Info 输出 Info 级别日志
func Info(msg string, args ...any) {
	Default().Sugar().Infow(msg, args...)
}

// Warn 输出 Warn 级别日志
func Warn(msg string, args ...any) {
	Default().Sugar().Warnw(msg, args...)
}

// Error 输出 Error 级别日志
func Error(msg string, args ...any) {
	Default().Sugar().Errorw(msg, args...)
}
