package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"evcs-harvester/lib/configutil"
	"evcs-harvester/lib/notify"
	"evcs-harvester/lib/serviceutil"
	"evcs-harvester/services/harvest"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func maskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 30 {
		return "(set)"
	}
	return secret[:20] + "..." + secret[len(secret)-10:]
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Checks the environment and email credentials without scraping anything.",
	Run: func(cmd *cobra.Command, args []string) {
		configutil.LoadDotenv()

		cfg, err := harvest.LoadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}

		w := table.NewWriter()
		w.AppendHeader(table.Row{"Setting", "Value"})
		w.AppendRow(table.Row{"Target URL", cfg.TargetURL})
		w.AppendRow(table.Row{"Output directory", cfg.OutputDir})
		w.AppendRow(table.Row{"Recipient", cfg.Notify.Recipient})
		w.AppendRow(table.Row{"Sender", fmt.Sprintf("%s <%s>", cfg.Notify.SenderName, cfg.Notify.SenderEmail)})
		w.AppendRow(table.Row{"Brevo API key", maskSecret(cfg.Notify.APIKey)})
		w.AppendRow(table.Row{"SMTP server", cfg.Notify.Smtp.Server})
		fmt.Println(w.Render())

		if cfg.Notify.APIKey == "" {
			fmt.Println("no API key configured, skipping the account check")
			return
		}

		account, err := notify.NewBrevoNotifier(cfg.Notify).GetAccount(cmd.Context())
		if err != nil {
			serviceutil.Fatal("email account check failed", err)
		}
		fmt.Printf("email account check passed: %s %s <%s>\n",
			account.FirstName, account.LastName, account.Email)
	},
}
