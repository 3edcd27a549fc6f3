package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	updateName     string
	updateJob      string
	updateBirthday string
	updateAvatar   string
	updateNotes    []string
)

var updateCmd = &cobra.Command{
	Use:   "update <id|name>",
	Short: "Edit a stored person directly",
	Long: `Edit the profile of a stored person without extraction or review.

Person can be specified by id or exact name. Only the given flags change;
--note appends to the stored notes.

Examples:
  circles update 张三 --job "医生"
  circles update 12 --birthday 1990-03-14
  circles update 张三 --name "张三丰"
  circles update 张三 --note "prefers green tea"`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "new name")
	updateCmd.Flags().StringVar(&updateJob, "job", "", "new job")
	updateCmd.Flags().StringVar(&updateBirthday, "birthday", "", "new birthday (MM-DD or YYYY-MM-DD)")
	updateCmd.Flags().StringVar(&updateAvatar, "avatar", "", "avatar URL")
	updateCmd.Flags().StringArrayVar(&updateNotes, "note", nil, "append a note (repeatable)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := store.RefreshPersons(ctx); err != nil {
		return err
	}
	person, err := findPerson(args[0])
	if err != nil {
		return err
	}

	upd, err := buildUpdate(person, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	updated, err := apiClient.UpdatePerson(ctx, person.ID, upd)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if err := store.RefreshPersons(ctx); err != nil {
		logger.Warn("refresh persons after update", "error", err)
	}
	printPerson(updated)
	return nil
}

// buildUpdate turns the changed flags into a partial update.
func buildUpdate(person *models.Person, changed func(string) bool) (models.PersonUpdate, error) {
	var upd models.PersonUpdate
	profile := map[string]any{}

	if changed("name") && updateName != person.Name {
		if updateName == "" {
			return upd, fmt.Errorf("name must not be empty")
		}
		if other := reconcile.Resolve(updateName, store.Persons()); other != nil {
			return upd, fmt.Errorf("name %q is already used by person %d", updateName, other.ID)
		}
		upd.Name = &updateName
	}
	if changed("job") {
		profile["job"] = updateJob
	}
	if changed("birthday") {
		if updateBirthday != "" && !reconcile.ValidBirthday(updateBirthday) {
			return upd, fmt.Errorf("birthday %q must be MM-DD or YYYY-MM-DD", updateBirthday)
		}
		profile["birthday"] = updateBirthday
	}
	if changed("avatar") {
		upd.Avatar = &updateAvatar
	}
	if len(updateNotes) > 0 {
		profile["notes"] = append(person.Notes(), updateNotes...)
	}
	if len(profile) > 0 {
		upd.Profile = profile
	}

	if upd.Name == nil && upd.Avatar == nil && upd.Profile == nil {
		return upd, fmt.Errorf("nothing to update")
	}
	return upd, nil
}
