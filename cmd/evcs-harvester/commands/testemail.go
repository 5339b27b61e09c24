package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"evcs-harvester/lib/configutil"
	"evcs-harvester/lib/notify"
	"evcs-harvester/lib/serviceutil"
	"evcs-harvester/services/harvest"
)

func init() {
	rootCmd.AddCommand(testEmailCmd)
}

var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Sends a probe message with a throwaway attachment to the configured recipient.",
	Run: func(cmd *cobra.Command, args []string) {
		configutil.LoadDotenv()

		cfg, err := harvest.LoadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}

		notifier := notify.New(cfg.Notify)
		err = notifier.Send(cmd.Context(), notify.Message{
			Subject:   "EVCS harvester test email",
			Recipient: cfg.Notify.Recipient,
			HTML: fmt.Sprintf(
				"<p>This is a delivery test sent on %s. If you are reading this, email reporting works.</p>",
				time.Now().UTC().Format("January 2, 2006 at 15:04 MST")),
			Attachments: []notify.Attachment{{
				Name:    "test_attachment.txt",
				Content: []byte("delivery test payload\n"),
			}},
		})
		if err != nil {
			serviceutil.Fatal("failed to send test email", err)
		}
		fmt.Println("test email sent to", cfg.Notify.Recipient)
	},
}
