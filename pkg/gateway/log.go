package gateway

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/chiraitori/spoticord/internal/logger"
)

var bridgeOnce sync.Once

// installLogBridge routes discordgo's package logger into ours.
func installLogBridge() {
	bridgeOnce.Do(func() {
		discordgo.Logger = func(msgL, _ int, format string, a ...any) {
			msg := fmt.Sprintf(format, a...)
			switch msgL {
			case discordgo.LogError:
				logger.Error(msg, "component", "discordgo")
			case discordgo.LogWarning:
				logger.Warn(msg, "component", "discordgo")
			case discordgo.LogInformational:
				logger.Info(msg, "component", "discordgo")
			default:
				logger.Debug(msg, "component", "discordgo")
			}
		}
	})
}

func sessionLogLevel() int {
	switch {
	case logger.Enabled(slog.LevelDebug):
		return discordgo.LogDebug
	case logger.Enabled(slog.LevelInfo):
		return discordgo.LogInformational
	default:
		return discordgo.LogWarning
	}
}
