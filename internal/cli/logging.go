package cli

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
)

// EnvLogLevel は--logが無い場合に参照するログレベルの環境変数。
const EnvLogLevel = "LOG_LEVEL"

// LevelTrace はdebugより詳細なログレベル。
const LevelTrace = slog.Level(-8)

var levelNames = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// parseLevel はログレベル名を解釈する。
func parseLevel(s string) (slog.Level, bool) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// resolveLevel は -v、--log、LOG_LEVEL、info の順でログレベルを決める。
// --logの値が不正な場合はエラー、LOG_LEVELの値が不正な場合はinfoとする。
func (a *app) resolveLevel(flagLevel string, verbose bool) (slog.Level, error) {
	if verbose {
		return slog.LevelDebug, nil
	}
	if flagLevel != "" {
		l, ok := parseLevel(flagLevel)
		if !ok {
			return slog.LevelInfo, usageError("ログレベルが不正です: %q (trace, debug, info, warn, error)", flagLevel)
		}
		return l, nil
	}
	if v, ok := a.lookupEnv(EnvLogLevel); ok {
		if l, ok := parseLevel(v); ok {
			return l, nil
		}
	}
	return slog.LevelInfo, nil
}

// setupLogging は標準エラー出力へのテキストハンドラーをslogの既定に設定する。
func (a *app) setupLogging(flagLevel string, verbose bool) error {
	level, err := a.resolveLevel(flagLevel, verbose)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.LevelKey {
				if l, ok := attr.Value.Any().(slog.Level); ok && l == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			}
			return attr
		},
	})
	a.level = level
	slog.SetDefault(slog.New(handler))
	slog.Log(context.Background(), LevelTrace, "ログを初期化しました", "level", level.String())
	return nil
}

// ginMode はログレベルに対応するGinの動作モードを返す。
func ginMode(level slog.Level) string {
	if level <= slog.LevelDebug {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
