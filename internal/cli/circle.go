package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/spf13/cobra"
)

var circleMembers bool
var circleColor string

var circleCmd = &cobra.Command{
	Use:   "circle",
	Short: "Group persons into circles",
	Long: `Group persons into circles such as family or colleagues.

Circles and persons can be given by id or exact name.

Examples:
  circles circle list --members
  circles circle add 家人 --color "#9B6B6B"
  circles circle join 家人 张三
  circles circle leave 家人 张三
  circles circle delete 家人`,
}

var circleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List circles",
	Args:  cobra.NoArgs,
	RunE:  runCircleList,
}

var circleAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a circle",
	Args:  cobra.ExactArgs(1),
	RunE:  runCircleAdd,
}

var circleJoinCmd = &cobra.Command{
	Use:   "join <circle> <person>",
	Short: "Add a person to a circle",
	Args:  cobra.ExactArgs(2),
	RunE:  runCircleJoin,
}

var circleLeaveCmd = &cobra.Command{
	Use:   "leave <circle> <person>",
	Short: "Remove a person from a circle",
	Args:  cobra.ExactArgs(2),
	RunE:  runCircleLeave,
}

var circleDeleteCmd = &cobra.Command{
	Use:   "delete <circle>",
	Short: "Delete a circle, keeping its members",
	Args:  cobra.ExactArgs(1),
	RunE:  runCircleDelete,
}

func init() {
	circleListCmd.Flags().BoolVarP(&circleMembers, "members", "m", false, "list members of each circle")
	circleAddCmd.Flags().StringVar(&circleColor, "color", "", "hex color (default: next palette color)")

	circleCmd.AddCommand(circleListCmd)
	circleCmd.AddCommand(circleAddCmd)
	circleCmd.AddCommand(circleJoinCmd)
	circleCmd.AddCommand(circleLeaveCmd)
	circleCmd.AddCommand(circleDeleteCmd)
}

func runCircleList(cmd *cobra.Command, args []string) error {
	if err := store.RefreshCircles(context.Background()); err != nil {
		return err
	}
	printCircles(store.Circles(), circleMembers)
	return nil
}

func printCircles(circles []models.CircleWithMembers, members bool) {
	if len(circles) == 0 {
		fmt.Fprintln(stdout, "No circles.")
		return
	}
	for _, c := range circles {
		fmt.Fprintf(stdout, "[%d] %s %s (%d)\n", c.ID, c.Name, c.Color, len(c.Members))
		if !members {
			continue
		}
		for _, m := range c.Members {
			line := "    " + m.Name
			if m.Job != nil {
				line += " · " + *m.Job
			}
			fmt.Fprintln(stdout, line)
		}
	}
}

func runCircleAdd(cmd *cobra.Command, args []string) error {
	c, err := apiClient.CreateCircle(context.Background(), args[0], circleColor)
	if err != nil {
		return fmt.Errorf("create circle: %w", err)
	}
	fmt.Fprintf(stdout, "Created circle %s (id %d, %s)\n", c.Name, c.ID, c.Color)
	return nil
}

func runCircleJoin(cmd *cobra.Command, args []string) error {
	c, p, err := resolveMembership(args[0], args[1])
	if err != nil {
		return err
	}
	if err := apiClient.AddCircleMember(context.Background(), c.ID, p.ID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	fmt.Fprintf(stdout, "%s joined %s\n", p.Name, c.Name)
	return nil
}

func runCircleLeave(cmd *cobra.Command, args []string) error {
	c, p, err := resolveMembership(args[0], args[1])
	if err != nil {
		return err
	}
	if err := apiClient.RemoveCircleMember(context.Background(), c.ID, p.ID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	fmt.Fprintf(stdout, "%s left %s\n", p.Name, c.Name)
	return nil
}

func runCircleDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := store.RefreshCircles(ctx); err != nil {
		return err
	}
	c, err := findCircle(args[0])
	if err != nil {
		return err
	}
	if err := apiClient.DeleteCircle(ctx, c.ID); err != nil {
		return fmt.Errorf("delete circle: %w", err)
	}
	fmt.Fprintf(stdout, "Deleted circle %s\n", c.Name)
	return nil
}

// resolveMembership refreshes circles and persons, then looks up both refs.
func resolveMembership(circleRef, personRef string) (*models.CircleWithMembers, *models.Person, error) {
	ctx := context.Background()
	if err := store.RefreshPersons(ctx); err != nil {
		return nil, nil, err
	}
	if err := store.RefreshCircles(ctx); err != nil {
		return nil, nil, err
	}
	c, err := findCircle(circleRef)
	if err != nil {
		return nil, nil, err
	}
	p, err := findPerson(personRef)
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

// findCircle resolves a numeric id or a name against the cached circles.
func findCircle(ref string) (*models.CircleWithMembers, error) {
	circles := store.Circles()
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for i := range circles {
			if circles[i].ID == id {
				return &circles[i], nil
			}
		}
	}
	name := strings.TrimSpace(ref)
	for i := range circles {
		if circles[i].Name == name {
			return &circles[i], nil
		}
	}
	return nil, fmt.Errorf("circle not found: %s", ref)
}
