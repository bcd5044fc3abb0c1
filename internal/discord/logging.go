package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// routeLogs sends discordgo's internal log lines through logger.
func routeLogs(logger *slog.Logger) {
	discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
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
}
