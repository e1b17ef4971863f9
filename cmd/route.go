package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
	"github.com/nextlevelbuilder/otcdesk/internal/dispatch"
	"github.com/nextlevelbuilder/otcdesk/internal/quotes"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
)

func routeCmd() *cobra.Command {
	var (
		groupID   string
		senderID  string
		control   bool
		docMime   string
		imageMime string
		quoteAt   string
	)
	cmd := &cobra.Command{
		Use:   "route <text>",
		Short: "Dry-run the router for one message against the configured store",
		Long: "Route one message through the same rule table the gateway uses and print the decision as JSON. " +
			"Nothing is dispatched and no quote is accepted. --quote opens a quote at the given price first.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := cmd.Context()
			c, err := buildCore(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			defer c.Close()

			if quoteAt != "" {
				price, err := decimal.NewFromString(quoteAt)
				if err != nil {
					return fmt.Errorf("--quote: %w", err)
				}
				if _, err := c.book.Open(quotes.OpenRequest{
					GroupID:     groupID,
					RequesterID: senderID,
					QuotedPrice: price,
					BasePrice:   price,
					PriceSource: "cli",
				}); err != nil {
					return fmt.Errorf("open quote: %w", err)
				}
			}

			msg := bus.InboundMessage{
				Channel:  "cli",
				SenderID: senderID,
				ChatID:   groupID,
				Content:  strings.Join(args, " "),
				PeerKind: "group",
			}
			if docMime != "" {
				msg.Attachments = append(msg.Attachments, bus.MediaAttachment{Kind: bus.AttachmentDocument, ContentType: docMime})
			}
			if imageMime != "" {
				msg.Attachments = append(msg.Attachments, bus.MediaAttachment{Kind: bus.AttachmentImage, ContentType: imageMime})
			}

			isControl := control || c.groups.IsControl(groupID)
			res := routing.NewPreview(c.deps).Route(ctx, dispatch.FromInbound(msg, isControl))

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&groupID, "group", "g", "cli-group", "group id")
	cmd.Flags().StringVarP(&senderID, "sender", "s", "cli-sender", "sender id")
	cmd.Flags().BoolVar(&control, "control", false, "treat the group as a control group")
	cmd.Flags().StringVar(&docMime, "document", "", "attach a document with this MIME type")
	cmd.Flags().StringVar(&imageMime, "image", "", "attach an image with this MIME type")
	cmd.Flags().StringVar(&quoteAt, "quote", "", "open a quote at this price before routing")
	return cmd
}
