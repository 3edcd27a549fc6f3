package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	addYes     bool
	addResolve string
)

// errAborted is returned when the user cancels a review.
var errAborted = errors.New("cancelled")

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Describe a person and save them after review",
	Long: `Describe a person in free text. Circles extracts a profile, checks
whether the name is already known and, for a known person, shows every
difference from the stored record for you to resolve before saving.

Without text arguments the description is read from stdin; on a
terminal, finish it with an empty line.

With --yes nothing is asked: a name match is treated as the same person
and every difference is resolved with --resolve.

Examples:
  circles add "张三 is an engineer at Acme, birthday 03-14"
  echo "李四 moved to Berlin" | circles add --yes --resolve use_new`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVarP(&addYes, "yes", "y", false, "accept without prompting")
	addCmd.Flags().StringVar(&addResolve, "resolve", string(models.KeepExisting), "resolution for differences with --yes: keep_existing, use_new or merge")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	resolve := models.Resolution(addResolve)
	if !resolve.Valid() {
		return fmt.Errorf("unknown resolution %q", addResolve)
	}
	interactive := isTerminal(os.Stdin)
	if !interactive && !addYes {
		return fmt.Errorf("stdin is not a terminal; pass --yes to save without review")
	}

	text := strings.Join(args, " ")
	if text == "" {
		var err error
		if text, err = readDescription(interactive); err != nil {
			return err
		}
	}

	if err := store.RefreshPersons(ctx); err != nil {
		return err
	}
	ctrl := reconcile.NewController(apiClient, apiClient, store,
		termNotifier{w: stderr, theme: defaultTheme}, logger,
		reconcile.Config{MaxTextLength: cfg.MaxTextLength})

	r := &reviewer{ctrl: ctrl, theme: defaultTheme, yes: addYes, resolve: resolve}
	resp, err := r.run(ctx, text)
	if errors.Is(err, errAborted) {
		fmt.Fprintln(stdout, "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, defaultTheme.completedStyle().Render(fmt.Sprintf("✓ %s (id %d)", resp.Message, resp.PersonID)))
	return nil
}

// readDescription reads the person description from stdin. On a terminal
// input ends at the first empty line, otherwise at EOF.
func readDescription(interactive bool) (string, error) {
	if !interactive {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	fmt.Fprintln(stdout, "Describe the person (finish with an empty line):")
	var lines []string
	for {
		line, err := stdin.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" && (err != nil || len(lines) > 0) {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}

// termNotifier prints controller failure notices.
type termNotifier struct {
	w     io.Writer
	theme Theme
}

func (n termNotifier) Notify(kind error, message string) {
	fmt.Fprintln(n.w, n.theme.errorStyle().Render("✗ "+message))
	if errors.Is(kind, reconcile.ErrNameCheck) {
		fmt.Fprintln(n.w, n.theme.hintStyle().Render("  continuing as a new person"))
	}
}

// reviewer walks one text through the reconciliation workflow on the
// terminal.
type reviewer struct {
	ctrl    *reconcile.Controller
	theme   Theme
	yes     bool
	resolve models.Resolution
}

// run submits text and loops over the controller state until the person is
// saved or the review is cancelled.
func (r *reviewer) run(ctx context.Context, text string) (*models.ConfirmResponse, error) {
	if err := r.ctrl.Submit(ctx, text); err != nil {
		return nil, err
	}

	for {
		switch st := r.ctrl.State(); st {
		case reconcile.NameCheck:
			if err := r.decide(ctx); err != nil {
				return nil, err
			}

		case reconcile.Editing, reconcile.Comparing:
			r.printSession(r.ctrl.Session())
			if err := r.resolveConflicts(); err != nil {
				return nil, err
			}
			collided, err := r.reviewProfile()
			if err != nil {
				return nil, err
			}
			if collided {
				continue
			}
			resp, err := r.save(ctx)
			if err != nil || resp != nil {
				return resp, err
			}

		case reconcile.Idle:
			return nil, errAborted

		default:
			return nil, fmt.Errorf("unexpected state %s", st)
		}
	}
}

// decide answers the pending same-or-different question.
func (r *reviewer) decide(ctx context.Context) error {
	m := r.ctrl.Pending()
	if m == nil {
		return fmt.Errorf("no pending name decision")
	}
	fmt.Fprintln(stdout, r.theme.headingStyle().Render(fmt.Sprintf("%s is already known", m.Person.Name)))
	fmt.Fprintf(stdout, "  id %d", m.Person.ID)
	if m.Person.Job != nil {
		fmt.Fprintf(stdout, ", %s", *m.Person.Job)
	}
	if m.Person.Birthday != nil {
		fmt.Fprintf(stdout, ", born %s", *m.Person.Birthday)
	}
	fmt.Fprintln(stdout)

	if r.yes {
		return r.ctrl.SamePerson(ctx)
	}

	answer, err := ask("[s]ame person, [d]ifferent person or [c]ancel", "s")
	if err != nil {
		return err
	}
	switch strings.ToLower(answer)[0] {
	case 's':
		// A failed compare keeps the question open; the notifier reported it.
		if err := r.ctrl.SamePerson(ctx); err != nil && !errors.Is(err, reconcile.ErrCompare) {
			return err
		}
	case 'd':
		name, err := ask("Name for the new person", m.SuggestedName)
		if err != nil {
			return err
		}
		if err := r.ctrl.DifferentPerson(name); err != nil {
			if !errors.Is(err, reconcile.ErrValidation) {
				return err
			}
			fmt.Fprintln(stdout, r.theme.errorStyle().Render(err.Error()))
		}
	case 'c':
		if err := r.ctrl.Cancel(); err != nil {
			return err
		}
		return errAborted
	}
	return nil
}

type decision struct {
	field  string
	action models.Resolution
}

// resolveConflicts asks for every unresolved conflict and applies the
// answers.
func (r *reviewer) resolveConflicts() error {
	s := r.ctrl.Session()
	unresolved := s.Unresolved()
	if len(unresolved) == 0 {
		return nil
	}
	if r.yes {
		if r.resolve == models.Merge && slices.ContainsFunc(unresolved, func(c models.ConflictItem) bool {
			return c.Field == reconcile.FieldBirthday
		}) {
			if err := r.ctrl.Resolve(reconcile.FieldBirthday, models.KeepExisting); err != nil {
				return err
			}
		}
		return r.ctrl.ResolveAll(r.resolve)
	}

	fmt.Fprintln(stdout, r.theme.headingStyle().Render(fmt.Sprintf("%d difference(s) from the stored record", len(unresolved))))
	var decisions []decision
	for _, c := range unresolved {
		action, err := r.askResolution(c)
		if err != nil {
			return err
		}
		decisions = append(decisions, decision{field: c.Field, action: action})
	}

	// Dropped additions renumber later ones, so apply back to front.
	slices.Reverse(decisions)
	for _, d := range decisions {
		if err := r.ctrl.Resolve(d.field, d.action); err != nil {
			return err
		}
	}
	return nil
}

func (r *reviewer) askResolution(c models.ConflictItem) (models.Resolution, error) {
	if c.IsAddition() {
		fmt.Fprintf(stdout, "  + %s: %s\n", c.Field, describe(c.New))
		answer, err := ask("    add it? [y/n]", "y")
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(strings.ToLower(answer), "n") {
			return models.KeepExisting, nil
		}
		return models.UseNew, nil
	}

	fmt.Fprintf(stdout, "  ~ %s: %s → %s\n", c.Field, describe(c.Existing), describe(c.New))
	prompt := "    [k]eep, [u]se new or [m]erge"
	if c.Field == reconcile.FieldBirthday {
		prompt = "    [k]eep or [u]se new"
	}
	for {
		answer, err := ask(prompt, "k")
		if err != nil {
			return "", err
		}
		switch strings.ToLower(answer)[0] {
		case 'k':
			return models.KeepExisting, nil
		case 'u':
			return models.UseNew, nil
		case 'm':
			if c.Field != reconcile.FieldBirthday {
				return models.Merge, nil
			}
		}
	}
}

// reviewProfile lets the user rename the person and fix an invalid
// birthday, then re-runs the name check. It reports whether the new name
// collides with someone else.
func (r *reviewer) reviewProfile() (bool, error) {
	if r.yes {
		return false, nil
	}
	s := r.ctrl.Session()
	if b := models.Deref(s.Profile.Birthday); b != "" && !reconcile.ValidBirthday(b) {
		fixed, err := ask(fmt.Sprintf("Birthday %q is not MM-DD or YYYY-MM-DD, enter a new one or - to clear", b), "-")
		if err != nil {
			return false, err
		}
		if fixed == "-" {
			fixed = ""
		}
		if err := r.ctrl.Edit(func(s *reconcile.Session) error {
			s.SetBirthday(fixed)
			return nil
		}); err != nil {
			return false, err
		}
	}

	current := s.Profile.Name
	name, err := ask("Name", current)
	if err != nil {
		return false, err
	}
	if name == current {
		return false, nil
	}
	if err := r.ctrl.Edit(func(s *reconcile.Session) error {
		s.SetName(name)
		return nil
	}); err != nil {
		return false, err
	}
	return r.ctrl.NameBlur()
}

// save confirms the session. A nil response with a nil error means the
// review goes on.
func (r *reviewer) save(ctx context.Context) (*models.ConfirmResponse, error) {
	if !r.yes {
		ok, err := confirm("Save?")
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := r.ctrl.Cancel(); err != nil {
				return nil, err
			}
			return nil, errAborted
		}
	}

	resp, err := r.ctrl.Confirm(ctx)
	switch {
	case err == nil:
		return resp, nil
	case r.yes:
		return nil, err
	case errors.Is(err, reconcile.ErrValidation):
		fmt.Fprintln(stdout, r.theme.errorStyle().Render(err.Error()))
		return nil, nil
	case errors.Is(err, reconcile.ErrPersistence):
		retry, rerr := confirm("Retry?")
		if rerr != nil {
			return nil, rerr
		}
		if retry {
			return nil, nil
		}
		_ = r.ctrl.Cancel()
		return nil, errAborted
	}
	return nil, err
}

// printSession shows the working copy.
func (r *reviewer) printSession(s *reconcile.Session) {
	title := s.Profile.Name
	if s.IsNewPerson {
		title += " (new)"
	} else if s.TargetPersonID != nil {
		title += fmt.Sprintf(" (id %d)", *s.TargetPersonID)
	}
	fmt.Fprintln(stdout, r.theme.headingStyle().Render(title))
	if s.Profile.Job != nil {
		fmt.Fprintf(stdout, "  job:      %s\n", *s.Profile.Job)
	}
	if s.Profile.Birthday != nil {
		fmt.Fprintf(stdout, "  birthday: %s\n", *s.Profile.Birthday)
	}
	for _, n := range s.Profile.Notes {
		fmt.Fprintf(stdout, "  note:     %s\n", n)
	}
	printEvents(stdout, s.Profile.Events)
	for _, a := range s.Annotations {
		fmt.Fprintf(stdout, "  observed: %s %s\n", a.Time, a.Description)
	}
	for _, d := range s.Developments {
		fmt.Fprintf(stdout, "  %-9s %s\n", d.Type+":", d.Content)
	}
	for _, rel := range s.Relations {
		fmt.Fprintf(stdout, "  related:  %s (%s)\n", rel.Name, rel.RelationType)
	}
}

// printEvents lists events grouped by date.
func printEvents(w io.Writer, events []models.Event) {
	for _, g := range reconcile.GroupEvents(events) {
		date := g.Date
		if date == "" {
			date = "undated"
		}
		fmt.Fprintf(w, "  %s\n", date)
		for _, e := range g.Events {
			line := e.Description
			if e.ID != nil {
				line = fmt.Sprintf("[%d] %s", *e.ID, line)
			}
			if e.Location != nil {
				line += " @ " + *e.Location
			}
			fmt.Fprintf(w, "    - %s\n", line)
		}
	}
}

// describe renders a conflict value on one line.
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "(none)"
	case string:
		return x
	case models.Event:
		return strings.TrimSpace(x.Date + " " + x.Description)
	case models.Annotation:
		return strings.TrimSpace(x.Time + " " + x.Description)
	case models.Development:
		return x.Type + ": " + x.Content
	case models.ExtractedRelation:
		return x.Name + " (" + x.RelationType + ")"
	case map[string]any:
		var parts []string
		for _, k := range []string{"date", "time", "type", "name", "description", "content", "relation_type", "location"} {
			if s, ok := x[k].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}
