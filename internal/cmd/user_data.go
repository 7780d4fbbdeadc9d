package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/dryrun"
	"github.com/youtell/visrec-cli/internal/validation"
)

func newUserDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user-data",
		Short: "Manage data stored for a customer",
	}
	cmd.AddCommand(newUserDataDeleteCmd())
	return cmd
}

func newUserDataDeleteCmd() *cobra.Command {
	var customerID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete all data labeled with a customer ID",
		Long: strings.TrimSpace(`
Delete every image and classifier labeled with a customer ID.

Data is labeled by sending the X-Watson-Metadata header, for example
-H 'X-Watson-Metadata: customer_id=acme'.
`),
		Example: "visrec user-data delete --customer-id acme --yes",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			customerID = strings.TrimSpace(customerID)
			if err := validation.ValidateCustomerID(customerID); err != nil {
				return err
			}

			if dryrun.IsEnabled(cmdContext(cmd)) {
				return writePreview(cmd, previewRequest("delete user data", api.DeleteUserDataRequest(customerID, nil)))
			}

			ok, err := confirmAction(cmd, fmt.Sprintf("Delete all data for customer %s?", customerID))
			if err != nil {
				return err
			}
			if !ok {
				printIfNotQuiet(cmd, "Aborted.\n")
				return nil
			}

			s, err := getSession()
			if err != nil {
				return err
			}
			if err := s.client.UserData().Delete(cmdContext(cmd), customerID, nil); err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"deleted": true, "customer_id": customerID})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deletion requested for customer %s\n", customerID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&customerID, "customer-id", "", "Customer ID whose data to delete (required)")
	return cmd
}
