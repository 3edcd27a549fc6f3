package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	deleteForce       bool
	deleteEvent       int64
	deleteAnnotation  int64
	deleteDevelopment int64
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a person or one of their items",
	Long: `Delete a person together with everything they own, or a single
event, annotation or development of that person. Item ids are shown by
"circles show".

Requires confirmation unless --force is used.

Examples:
  circles delete 张三
  circles delete 12 --event 40
  circles delete 张三 --annotation 7 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
	deleteCmd.Flags().Int64Var(&deleteEvent, "event", 0, "delete only this event")
	deleteCmd.Flags().Int64Var(&deleteAnnotation, "annotation", 0, "delete only this annotation")
	deleteCmd.Flags().Int64Var(&deleteDevelopment, "development", 0, "delete only this development")
	deleteCmd.MarkFlagsMutuallyExclusive("event", "annotation", "development")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := store.RefreshPersons(ctx); err != nil {
		return err
	}
	person, err := findPerson(args[0])
	if err != nil {
		return err
	}

	kind, itemID := "", int64(0)
	switch {
	case deleteEvent > 0:
		kind, itemID = "events", deleteEvent
	case deleteAnnotation > 0:
		kind, itemID = "annotations", deleteAnnotation
	case deleteDevelopment > 0:
		kind, itemID = "developments", deleteDevelopment
	}

	target := fmt.Sprintf("%s (id %d) and everything they own", person.Name, person.ID)
	if kind != "" {
		target = fmt.Sprintf("%s %d of %s", kind[:len(kind)-1], itemID, person.Name)
	}
	if !deleteForce {
		fmt.Fprintf(stdout, "About to delete: %s\n", target)
		ok, err := confirm("Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Cancelled.")
			return nil
		}
	}

	if kind != "" {
		if err := apiClient.DeleteItem(ctx, kind, person.ID, itemID); err != nil {
			return fmt.Errorf("delete %s: %w", kind, err)
		}
	} else if err := store.DeletePerson(ctx, person.ID); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Deleted: %s\n", target)
	return nil
}
