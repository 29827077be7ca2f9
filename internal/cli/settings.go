package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/anime-shed/image-inspector-go/internal/service"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or reset the stored preferences",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(func(svc service.InspectionService) error {
				return printSettings(cmd.OutOrStdout(), svc.Settings(cmd.Context()))
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(func(svc service.InspectionService) error {
				s, err := svc.ResetSettings(cmd.Context())
				if err != nil {
					return err
				}
				return printSettings(cmd.OutOrStdout(), s)
			})
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

func printSettings(w io.Writer, s models.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
