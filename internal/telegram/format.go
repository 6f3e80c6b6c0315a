package telegram

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"greenpulse/internal/greenpulse/derive"
	gpmodels "greenpulse/internal/greenpulse/models"
	gpservice "greenpulse/internal/greenpulse/service"
	"greenpulse/internal/telegram/models"
	"greenpulse/internal/telegram/service"
)

// commandArgs 去掉命令本身（包括 @botname 后缀）后的参数
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// parseDonateArgs /donate <amount> [beneficiary id]：带受益人即为指定捐赠
func parseDonateArgs(args []string) (gpservice.DonationRequest, error) {
	if len(args) == 0 || len(args) > 2 {
		return gpservice.DonationRequest{}, errors.New("Usage: /donate &lt;coins&gt; [beneficiary id]")
	}
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return gpservice.DonationRequest{}, errors.New("Amount must be a number.")
	}

	req := gpservice.DonationRequest{AmountCoins: amount, BeneficiaryType: gpmodels.BeneficiaryAuto}
	if len(args) == 2 {
		id := args[1]
		req.BeneficiaryType = gpmodels.BeneficiaryManual
		req.BeneficiaryID = &id
	}
	return req, nil
}

// userErrorMessage 面向用户的错误提示
func userErrorMessage(err error) string {
	if errors.Is(err, service.ErrNotLinked) {
		return "Your account is not linked yet. Send /start and ask an admin to link it."
	}
	var kinded gpmodels.KindedError
	if errors.As(err, &kinded) {
		return html.EscapeString(kinded.UserMessage())
	}
	return "Something went wrong. Please try again later."
}

func formatWelcome(firstName string, telegramID int64) string {
	return fmt.Sprintf(
		"👋 Hi, %s!\n\n"+
			"Your Telegram ID is <code>%d</code>. Ask an admin to link it to your GreenPulse account.\n\n"+
			"Commands:\n"+
			"/impact [months] - your impact dashboard\n"+
			"/history [all|coins|credits] - coins and credits history\n"+
			"/donate &lt;coins&gt; [beneficiary id] - donate coins\n"+
			"/coverage &lt;bill&gt; - how much of a bill your credits cover",
		html.EscapeString(firstName), telegramID,
	)
}

func formatDashboard(d *gpservice.Dashboard) string {
	var text strings.Builder
	text.WriteString("🌱 <b>Your impact</b>\n\n")
	text.WriteString(fmt.Sprintf("⚡ Coins generated: <b>%s</b>\n", formatAmount(d.CoinsGenerated)))
	text.WriteString(fmt.Sprintf("🎁 Coins donated: <b>%s</b>\n", formatAmount(d.CoinsDonated)))
	text.WriteString(fmt.Sprintf("🏠 Families helped: <b>%d</b>\n", d.FamiliesHelped))
	text.WriteString(fmt.Sprintf("💳 Credits: <b>%s</b>\n", formatAmount(d.Credits.Trusted)))
	text.WriteString(fmt.Sprintf("🔌 Usage this month vs last: <b>%+.1f%%</b>\n", d.UsageChangePercent))
	if d.ConsistencyWarning != "" {
		text.WriteString("⚠️ " + html.EscapeString(d.ConsistencyWarning) + "\n")
	}

	text.WriteString("\n<b>Monthly</b> (generated / used / donated)\n")
	for i, b := range d.Monthly.Generated {
		text.WriteString(fmt.Sprintf("%s: %s / %s / %s\n",
			b.Label,
			formatAmount(b.Value),
			formatAmount(valueAt(d.Monthly.Usage, i)),
			formatAmount(valueAt(d.Monthly.Donated, i)),
		))
	}

	if len(d.Devices) > 0 {
		text.WriteString("\n<b>By device</b>\n")
		for _, b := range d.Devices {
			text.WriteString(fmt.Sprintf("• %s: %s\n", html.EscapeString(b.Label), formatAmount(b.Value)))
		}
	}
	if d.SkippedDocuments > 0 {
		text.WriteString(fmt.Sprintf("\n<i>%d unreadable records were skipped.</i>", d.SkippedDocuments))
	}
	return text.String()
}

func formatLedger(txs []gpmodels.Transaction, filter gpmodels.LedgerFilter, limit int) string {
	if len(txs) == 0 {
		return "📝 No transactions yet."
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📒 <b>History</b> (%s)\n\n", filter))
	for i, tx := range txs {
		if i == limit {
			text.WriteString(fmt.Sprintf("… and %d more", len(txs)-limit))
			break
		}
		icon := "➕"
		if tx.Category == gpmodels.CategoryDonation {
			icon = "➖"
		}
		line := fmt.Sprintf("%s %s %s", icon, formatSigned(tx.Amount), tx.DateLabel)
		if tx.Counterparty != "" {
			line += " · " + html.EscapeString(tx.Counterparty)
		}
		text.WriteString(line + "\n")
	}
	return text.String()
}

func formatDonation(event *gpmodels.DonationEvent) string {
	target := derive.CommunityPoolLabel
	if event.BeneficiaryID != nil {
		target = *event.BeneficiaryID
	}
	return fmt.Sprintf("Donated %s coins to %s. Thank you!", formatAmount(event.AmountCoins), html.EscapeString(target))
}

func formatCoverage(c *gpservice.BillCoverage) string {
	if !c.Result.Defined {
		return fmt.Sprintf("💳 Your %s credits are worth %s. Enter a bill amount above 0 to see coverage.",
			formatAmount(c.Credits), c.Result.CreditValue.StringFixed(2))
	}
	text := fmt.Sprintf("💳 Your %s credits (%s) cover <b>%.2f%%</b> of a %s bill.",
		formatAmount(c.Credits), c.Result.CreditValue.StringFixed(2), c.Result.Percent, c.Result.BillAmount.StringFixed(2))
	if c.Result.Capped {
		text += " The whole bill is covered."
	}
	return text
}

func formatGoal(g *gpservice.CommunityGoal) string {
	text := fmt.Sprintf(
		"🌍 <b>Community goal</b>\n\nTotal: <b>%s</b> coins\nAuto: %s\nManual: %s\nFamilies helped: %d",
		formatAmount(g.TotalCoins), formatAmount(g.AutoCoins), formatAmount(g.ManualCoins), g.FamiliesHelped,
	)
	if g.LastUpdatedOK {
		text += "\nLast donation: " + g.LastUpdated.Format("2006-01-02 15:04")
	}
	return text
}

func formatAdmins(admins []*models.Account) string {
	if len(admins) == 0 {
		return "📝 No admins yet."
	}
	var text strings.Builder
	text.WriteString("👥 Admins:\n\n")
	for i, admin := range admins {
		roleEmoji := "⭐"
		if admin.IsOwner() {
			roleEmoji = "👑"
		}
		text.WriteString(fmt.Sprintf("%d. %s %s (@%s) - ID: %d\n",
			i+1, roleEmoji, html.EscapeString(admin.FirstName), html.EscapeString(admin.Username), admin.TelegramID))
	}
	return text.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatSigned(v float64) string {
	if v > 0 {
		return "+" + formatAmount(v)
	}
	return formatAmount(v)
}

func valueAt(buckets []derive.Bucket, i int) float64 {
	if i < len(buckets) {
		return buckets[i].Value
	}
	return 0
}
