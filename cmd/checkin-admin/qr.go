package main

import (
	"fmt"
	"os"
	"strings"

	"gym-checkin/internal/checkin/qr"
	"gym-checkin/internal/utils"

	"github.com/spf13/cobra"
)

func qrCmd() *cobra.Command {
	var (
		output string
		size   int
	)

	cmd := &cobra.Command{
		Use:   "qr [code] [venue-id]",
		Short: "Render the QR image a member would show for a code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(args[0])
			if !utils.IsAccessCode(code) {
				return fmt.Errorf("%q is not a %d character check-in code", args[0], utils.AccessCodeLength)
			}

			payload, err := qr.EncodePayload(qr.Payload{Code: code, VenueID: args[1]})
			if err != nil {
				return err
			}
			png, err := qr.NewQRGenerator(size).RenderPNG(payload)
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), payload)
				return nil
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", output, payload)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file to write; prints the payload when empty")
	cmd.Flags().IntVar(&size, "size", 256, "image size in pixels")
	return cmd
}
