package bot

import (
	"strconv"

	"github.com/m3rciful/fundbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback keys. The donate keyboard encodes the preset amount in the
// callback payload.
const (
	cbDonatePreset = "donate_preset"
	cbDonateCustom = "donate_custom"
	cbShowStats    = "show_stats"
)

// mainKeyboard is the persistent reply keyboard shown on /start.
func mainKeyboard() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{btnDonate, btnStats},
	)
}

// donateKeyboard offers the preset amounts, a custom amount entry, and a
// stats shortcut.
func donateKeyboard(presets []int64, currency string) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(presets))
	for _, amount := range presets {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   strconv.FormatInt(amount, 10) + " " + currency,
			Unique: cbDonatePreset,
			Data:   strconv.FormatInt(amount, 10),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)

	extra := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✏️ Custom amount", Unique: cbDonateCustom}},
		[]keyboard.InlineBtn{{Text: "📊 Progress", Unique: cbShowStats}},
	)
	markup.InlineKeyboard = append(markup.InlineKeyboard, extra.InlineKeyboard...)
	return markup
}
