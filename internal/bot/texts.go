package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/fundbot/core/telegram/format"
	"github.com/m3rciful/fundbot/internal/domain"
	"github.com/m3rciful/fundbot/internal/service"
)

// Reply-keyboard button labels. The text router treats them as command
// aliases.
const (
	btnDonate = "💰 Donate"
	btnStats  = "📊 Progress"
)

const (
	msgWelcome = "Hi! This bot collects donations toward the current fundraising goal.\n" +
		"Tap a button below or use /donate and /stats."
	msgNoActiveGoal      = "There is no active fundraising goal right now. Please check back later."
	msgChooseAmount      = "Choose a donation amount or enter your own:"
	msgEnterAmount       = "Enter the amount you would like to donate:"
	msgGenericError      = "Something went wrong. Please try again."
	msgAdminOnly         = "Creating goals is available to the administrator only."
	msgCreationTitle     = "Creating a new goal. Send the goal title:"
	msgCreationDesc      = "Got it. Now send the goal description:"
	msgCreationAmount    = "Now send the target amount:"
	msgCreationCancelled = "Goal creation cancelled."
	msgNothingToCancel   = "Nothing to cancel."
	msgCancelled         = "Cancelled."
	msgUnknownInput      = "I did not understand that. Use /donate or /stats."
	msgPreCheckoutFail   = "Fundraising is not accepting donations right now."
)

func msgAmountInvalid(min, max int64) string {
	return fmt.Sprintf("Please enter a whole number between %d and %d.", min, max)
}

func msgGoalCreated(g *domain.Goal) string {
	return fmt.Sprintf("New goal *%s* is active!\nTarget: %d", escapeMD(g.Title), g.TargetAmount)
}

func msgThankYou(amount int64, currency string) string {
	return fmt.Sprintf("Thank you! Your donation of %d %s has been received. 🎉", amount, currency)
}

func msgStats(stats *domain.GoalStats) string {
	percent := service.Percent(&stats.Goal)
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", escapeMD(stats.Goal.Title))
	if stats.Goal.Description != "" {
		fmt.Fprintf(&b, "%s\n", escapeMD(stats.Goal.Description))
	}
	fmt.Fprintf(&b, "\n%s %.1f%%\n", service.ProgressBar(percent), percent)
	fmt.Fprintf(&b, "Collected: %d of %d\n", stats.Goal.CurrentAmount, stats.Goal.TargetAmount)
	fmt.Fprintf(&b, "Donations: %d from %d donors", stats.DonationCount, stats.DonorCount)
	return b.String()
}

// escapeMD guards legacy-Markdown control characters in user-entered text.
func escapeMD(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return out
}
